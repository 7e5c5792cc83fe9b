// Command createuser registers an account from the terminal:
//
//	createuser -email alice@example.com -d postgres://...
//
// The password is read twice without echo. Database settings come from the
// same environment, dotenv, JSON and flag sources as the server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/memestore/internal/adminctl"
	"github.com/dmitrijs2005/memestore/internal/logging"
	"github.com/dmitrijs2005/memestore/internal/server/auth"
	"github.com/dmitrijs2005/memestore/internal/server/config"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memestore/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, slog.LevelWarn)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager(time.Now)
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params)
	if err != nil {
		log.Fatalf("%v", err)
	}
	codec := auth.NewTokenCodec([]byte(cfg.SecretKey), time.Now)
	ss := services.NewSessionService(db, rm, hasher, codec, cfg, logger)

	u, err := adminctl.CreateUser(ctx, ss, bufio.NewReader(os.Stdin), os.Stdout, int(os.Stdin.Fd()), adminctl.EmailFlag(os.Args[1:]))
	if err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%s\n", u.Email, u.ID)
}
