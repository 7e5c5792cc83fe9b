package models

import "time"

// Meme is a user-owned image record. ImagePath is the object-storage key.
type Meme struct {
	ID          int64
	OwnerID     string
	Description string
	ImagePath   string
	Visibility  bool
	CreatedAt   time.Time
}

// MemeUpdate carries a partial update. Nil fields are left unchanged, so an
// empty description or a false visibility are real values.
type MemeUpdate struct {
	Description *string
	Visibility  *bool
}

// Empty reports whether the update touches nothing.
func (u MemeUpdate) Empty() bool {
	return u.Description == nil && u.Visibility == nil
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
