package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/dbx"
	"github.com/dmitrijs2005/memestore/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
// now decides expiry on redeem; nil means time.Now.
func NewPostgresRepository(db dbx.DBTX, now func() time.Time) *PostgresRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresRepository{db: db, now: now}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	rt := &models.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt}
	if err := r.db.QueryRowContext(ctx, query, userID, token, expiresAt).Scan(&rt.ID); err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return rt, nil
}

// Redeem uses SKIP LOCKED so that of two concurrent callers exactly one sees
// the row; the other gets ErrTokenNotFound without waiting.
func (r *PostgresRepository) Redeem(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, used
		FROM refresh_tokens
		WHERE token = $1
		FOR UPDATE SKIP LOCKED
	`
	rt := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	switch {
	case rt.Expired(r.now()):
		return nil, common.ErrTokenExpired
	case rt.Used:
		return nil, common.ErrTokenAlreadyUsed
	}

	update := `
		UPDATE refresh_tokens SET used = TRUE
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, update, rt.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	rt.Used = true

	return rt, nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, used
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RefreshToken
	for rows.Next() {
		rt := &models.RefreshToken{}
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.Used); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
