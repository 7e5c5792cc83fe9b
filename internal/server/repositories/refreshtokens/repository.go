// Package refreshtokens declares the server-side repository contract for
// single-use refresh tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memestore/internal/server/models"
)

// Repository defines operations for issuing and redeeming refresh tokens.
type Repository interface {
	// Create stores a new unused refresh token for userID.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// Redeem locks the token row and marks it used. Implementations return
	// common.ErrTokenNotFound when the token is absent or locked by a concurrent
	// redeemer, common.ErrTokenExpired past its expiry and
	// common.ErrTokenAlreadyUsed when it was redeemed before. The handle the
	// repository is bound to must be a transaction.
	Redeem(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindByUser lists the user's tokens, newest first.
	FindByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)
}
