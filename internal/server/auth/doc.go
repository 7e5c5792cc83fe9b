// Package auth holds the credential primitives of the server: argon2id
// password hashing and HS256 access tokens.
package auth
