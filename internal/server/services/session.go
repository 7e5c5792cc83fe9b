// Package services contains server-side business logic. This file implements
// SessionService, which handles registration, login, access-token checks and
// single-use refresh token rotation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/dbx"
	"github.com/dmitrijs2005/memestore/internal/logging"
	"github.com/dmitrijs2005/memestore/internal/server/auth"
	"github.com/dmitrijs2005/memestore/internal/server/config"
	"github.com/dmitrijs2005/memestore/internal/server/models"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/repomanager"
)

// refreshTokenBytes is the entropy of a refresh token before encoding.
const refreshTokenBytes = 32

// withTx is a seam for running a function in a transaction.
var withTx = dbx.WithTx

// SessionService provides authentication-related operations.
type SessionService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	hasher                       *auth.PasswordHasher
	codec                        *auth.TokenCodec
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	minPasswordLength            int
	now                          func() time.Time
	log                          logging.Logger
}

// NewSessionService wires a SessionService. The codec should share the
// service's notion of time; both default to time.Now.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher,
	codec *auth.TokenCodec, cfg *config.Config, log logging.Logger) *SessionService {
	return &SessionService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		codec:                        codec,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		minPasswordLength:            cfg.MinPasswordLength,
		now:                          time.Now,
		log:                          log,
	}
}

// Login checks credentials and issues a new session. Unknown email and wrong
// password are indistinguishable to the caller, in result and in timing.
func (s *SessionService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		return nil, common.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.HashedPassword) {
		s.upgradeHash(ctx, user.ID, password)
	}

	return s.issueSession(ctx, user.ID, s.db)
}

// upgradeHash stores password under the current argon2 params so later
// logins cost the same as the dummy path. Failures only cost that upgrade.
func (s *SessionService) upgradeHash(ctx context.Context, userID, password string) {
	hashed, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repomanager.Users(s.db).UpdatePassword(ctx, userID, hashed)
	}
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", userID, "error", err)
	}
}

// Refresh redeems refreshToken and issues its successor in one transaction.
// Not found, expired and already-used tokens come back as the matching
// common sentinel; nothing is persisted in those cases.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session *models.Session

	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, err := s.repomanager.RefreshTokens(tx).Redeem(ctx, refreshToken)
		if err != nil {
			return err
		}
		session, err = s.issueSession(ctx, token.UserID, tx)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrTokenAlreadyUsed) {
			s.log.Warn(ctx, "refresh token reuse attempt")
		}
		return nil, err
	}

	return session, nil
}

// Register creates an account after checking the email and password policy.
func (s *SessionService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetUserByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailInUse
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// a concurrent registration can still win the race; the repository
	// reports that as common.ErrEmailInUse
	u, err := repo.Create(ctx, &models.User{Email: email, HashedPassword: hashed})
	if err != nil {
		if errors.Is(err, common.ErrEmailInUse) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Authenticate resolves a bearer access token to its user.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := s.codec.Validate(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserUnknown
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	return user, nil
}

// UpdatePassword rehashes and stores a new password for userID.
func (s *SessionService) UpdatePassword(ctx context.Context, userID, password string) error {
	if err := s.validatePassword(password); err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, userID, hashed); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserUnknown
		}
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}

// DeleteUser removes the account. Refresh tokens and memes cascade.
func (s *SessionService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserUnknown
		}
		return fmt.Errorf("error deleting user: %w", err)
	}
	s.log.Info(ctx, "user deleted", "user_id", userID)
	return nil
}

// --- helpers below ---

func (s *SessionService) issueSession(ctx context.Context, userID string, db dbx.DBTX) (*models.Session, error) {
	access, accessExp, err := s.codec.Issue(userID, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	refresh, err := common.MakeRandURLSafeString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	rt, err := s.repomanager.RefreshTokens(db).Create(ctx, userID, refresh, s.now().Add(s.refreshTokenValidityDuration))
	if err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &models.Session{
		UserID:                userID,
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          rt.Token,
		RefreshTokenExpiresAt: rt.ExpiresAt,
	}, nil
}

func (s *SessionService) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < s.minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, s.minPasswordLength)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", common.ErrorValidation)
	}
	return nil
}
