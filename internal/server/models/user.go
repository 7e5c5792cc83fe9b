// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. Email is unique and stored as given.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}
