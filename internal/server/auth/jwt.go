package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the standard registered claims plus the owning user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// TokenCodec issues and validates HS256 access tokens. The signing secret is
// fixed at construction.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec returns a codec bound to secret. A nil clock means time.Now.
func NewTokenCodec(secret []byte, clock func() time.Time) *TokenCodec {
	if clock == nil {
		clock = time.Now
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, now: clock}
}

// Issue signs a token for userID that expires ttl from now. ttl is rounded to
// whole seconds by the JWT encoding and must be at least one second.
func (c *TokenCodec) Issue(userID string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("issue token: empty user id")
	}
	if ttl < time.Second {
		return "", time.Time{}, fmt.Errorf("issue token: ttl %s too short", ttl)
	}

	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
		UserID: userID,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt.Time, nil
}

// Validate checks the signature and expiry of tokenString and returns the
// embedded user id. A token is valid up to and including its exp instant.
// Expired tokens give common.ErrTokenExpired; anything else that fails gives
// common.ErrSignatureInvalid.
func (c *TokenCodec) Validate(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		// the library rejects now == exp; the bound is re-checked below
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrSignatureInvalid
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrSignatureInvalid
	}

	if c.now().After(claims.ExpiresAt.Time) {
		return "", common.ErrTokenExpired
	}

	return claims.UserID, nil
}
