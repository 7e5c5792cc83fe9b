// Package adminctl holds operator commands that run against the database
// directly, outside the HTTP API.
package adminctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/flagx"
	"github.com/dmitrijs2005/memestore/internal/server/models"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// Registrar creates accounts. Implemented by services.SessionService.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
}

// EmailFlag returns the value of -email in args, or "" when absent. Other
// arguments belong to the server config parser and are ignored.
func EmailFlag(args []string) string {
	var email string
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&email, "email", "", "email of the new account")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-email"}))
	return email
}

// CreateUser asks for the email (unless given), then for the password twice,
// and registers the account through r. Password policy and duplicate
// detection are left to r.
func CreateUser(ctx context.Context, r Registrar, in *bufio.Reader, w io.Writer, fd int, email string) (*models.User, error) {
	if email == "" {
		var err error
		email, err = GetSimpleText(in, "Email", w)
		if err != nil {
			return nil, fmt.Errorf("read email: %w", err)
		}
	}

	pw, err := GetPassword(w, fd, "Password")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(w, fd, "Repeat password")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return nil, ErrPasswordMismatch
	}

	return r.Register(ctx, email, string(pw))
}
