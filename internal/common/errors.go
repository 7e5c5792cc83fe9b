// Package common defines sentinel errors and small helpers shared by the
// server layers of memestore. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level input errors.
	ErrorValidation = errors.New("validation error")

	// Credential errors. Unknown email and wrong password both map to
	// ErrInvalidCredentials.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrEmailInUse         = errors.New("email address already in use")

	// Refresh token lifecycle errors.
	ErrTokenNotFound    = errors.New("refresh token not found")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("refresh token already used")

	// Access token errors.
	ErrSignatureInvalid = errors.New("invalid token signature")
	ErrUserUnknown      = errors.New("token owner no longer exists")
)
