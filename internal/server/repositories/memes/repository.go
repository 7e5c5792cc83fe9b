// Package memes stores meme records. Image bytes live in object storage;
// rows only carry the object key.
package memes

import (
	"context"

	"github.com/dmitrijs2005/memestore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, meme *models.Meme) (*models.Meme, error)
	// GetByOwner returns the meme only if ownerID owns it.
	GetByOwner(ctx context.Context, ownerID string, id int64) (*models.Meme, error)
	// GetPublic returns the meme only if ownerID owns it and it is visible.
	GetPublic(ctx context.Context, ownerID string, id int64) (*models.Meme, error)
	ListByOwner(ctx context.Context, ownerID string, page models.Page) ([]*models.Meme, error)
	ListPublicByOwner(ctx context.Context, ownerID string, page models.Page) ([]*models.Meme, error)
	// Update applies the non-nil fields of upd and returns the new row.
	Update(ctx context.Context, ownerID string, id int64, upd models.MemeUpdate) (*models.Meme, error)
	// Delete removes the row and returns its image key.
	Delete(ctx context.Context, ownerID string, id int64) (string, error)
	// ImagePathsByOwner lists every image key the owner has, for cleanup
	// before the account goes away.
	ImagePathsByOwner(ctx context.Context, ownerID string) ([]string, error)
}
