package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/logging"
	"github.com/dmitrijs2005/memestore/internal/server/config"
	"github.com/dmitrijs2005/memestore/internal/server/models"
	"github.com/dmitrijs2005/memestore/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ObjectStore keeps image bytes. Implemented by storage.S3Store.
type ObjectStore interface {
	Upload(ctx context.Context, body io.Reader, size int64, contentType, filename string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// MemeView is a meme with a temporary download URL for its image.
type MemeView struct {
	*models.Meme
	ImageURL string
}

// NewMeme describes an upload.
type NewMeme struct {
	Description string
	Visibility  bool
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// MediaService manages memes and their stored images.
type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	objects     ObjectStore
	presignTTL  time.Duration
	log         logging.Logger
}

func NewMediaService(db *sql.DB, m repomanager.RepositoryManager, objects ObjectStore, cfg *config.Config, log logging.Logger) *MediaService {
	return &MediaService{
		db:          db,
		repomanager: m,
		objects:     objects,
		presignTTL:  cfg.PresignValidityDuration,
		log:         log,
	}
}

// NewPage checks pagination input. Zero values take the defaults.
func NewPage(number, size int) (models.Page, error) {
	if number == 0 {
		number = DefaultPage
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if number < 1 {
		return models.Page{}, fmt.Errorf("%w: page must be >= 1", common.ErrorValidation)
	}
	if size < 1 || size > MaxPageSize {
		return models.Page{}, fmt.Errorf("%w: page_size must be between 1 and %d", common.ErrorValidation, MaxPageSize)
	}
	return models.Page{Number: number, Size: size}, nil
}

// Create uploads the image and records the meme. If the insert fails the
// uploaded object is removed again.
func (s *MediaService) Create(ctx context.Context, ownerID string, in NewMeme) (*MemeView, error) {
	key, err := s.objects.Upload(ctx, in.Body, in.Size, in.ContentType, in.Filename)
	if err != nil {
		return nil, fmt.Errorf("error uploading image: %w", err)
	}

	meme, err := s.repomanager.Memes(s.db).Create(ctx, &models.Meme{
		OwnerID:     ownerID,
		Description: in.Description,
		ImagePath:   key,
		Visibility:  in.Visibility,
	})
	if err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserUnknown
		}
		return nil, fmt.Errorf("error creating meme: %w", err)
	}

	return s.view(ctx, meme)
}

// GetOwn returns one of the caller's memes regardless of visibility.
func (s *MediaService) GetOwn(ctx context.Context, ownerID string, id int64) (*MemeView, error) {
	meme, err := s.repomanager.Memes(s.db).GetByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, meme)
}

// ListOwn pages through all of the caller's memes.
func (s *MediaService) ListOwn(ctx context.Context, ownerID string, page models.Page) ([]*MemeView, error) {
	memes, err := s.repomanager.Memes(s.db).ListByOwner(ctx, ownerID, page)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, memes)
}

// GetPublic returns a visible meme of another user. An unknown user and a
// hidden meme both yield common.ErrorNotFound.
func (s *MediaService) GetPublic(ctx context.Context, ownerID string, id int64) (*MemeView, error) {
	if err := s.userExists(ctx, ownerID); err != nil {
		return nil, err
	}
	meme, err := s.repomanager.Memes(s.db).GetPublic(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, meme)
}

// ListPublic pages through the visible memes of a user.
func (s *MediaService) ListPublic(ctx context.Context, ownerID string, page models.Page) ([]*MemeView, error) {
	if err := s.userExists(ctx, ownerID); err != nil {
		return nil, err
	}
	memes, err := s.repomanager.Memes(s.db).ListPublicByOwner(ctx, ownerID, page)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, memes)
}

// Update changes description and/or visibility. An empty update returns the
// meme unchanged.
func (s *MediaService) Update(ctx context.Context, ownerID string, id int64, upd models.MemeUpdate) (*MemeView, error) {
	repo := s.repomanager.Memes(s.db)

	var (
		meme *models.Meme
		err  error
	)
	if upd.Empty() {
		meme, err = repo.GetByOwner(ctx, ownerID, id)
	} else {
		meme, err = repo.Update(ctx, ownerID, id, upd)
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, meme)
}

// Delete removes the meme and then its image. A failed object delete is
// logged; the record is already gone.
func (s *MediaService) Delete(ctx context.Context, ownerID string, id int64) error {
	key, err := s.repomanager.Memes(s.db).Delete(ctx, ownerID, id)
	if err != nil {
		return err
	}
	s.removeObject(ctx, key)
	return nil
}

// ImageKeys lists the object keys owned by userID.
func (s *MediaService) ImageKeys(ctx context.Context, userID string) ([]string, error) {
	return s.repomanager.Memes(s.db).ImagePathsByOwner(ctx, userID)
}

// RemoveObjects deletes the given keys, logging failures.
func (s *MediaService) RemoveObjects(ctx context.Context, keys []string) {
	for _, k := range keys {
		s.removeObject(ctx, k)
	}
}

// --- helpers below ---

func (s *MediaService) userExists(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("user %q: %w", userID, common.ErrorNotFound)
	}
	if _, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user %s: %w", userID, common.ErrorNotFound)
		}
		return err
	}
	return nil
}

func (s *MediaService) removeObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "image delete failed", "key", key, "error", err)
	}
}

func (s *MediaService) view(ctx context.Context, meme *models.Meme) (*MemeView, error) {
	url, err := s.objects.PresignedURL(ctx, meme.ImagePath, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("error presigning image: %w", err)
	}
	return &MemeView{Meme: meme, ImageURL: url}, nil
}

func (s *MediaService) views(ctx context.Context, memes []*models.Meme) ([]*MemeView, error) {
	out := make([]*MemeView, 0, len(memes))
	for _, m := range memes {
		v, err := s.view(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
