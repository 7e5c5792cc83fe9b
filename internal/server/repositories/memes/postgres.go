package memes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/dbx"
	"github.com/dmitrijs2005/memestore/internal/server/models"
)

const memeColumns = `id, owner_id, description, image_path, visibility, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeme(s scanner) (*models.Meme, error) {
	m := &models.Meme{}
	if err := s.Scan(&m.ID, &m.OwnerID, &m.Description, &m.ImagePath, &m.Visibility, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, meme *models.Meme) (*models.Meme, error) {
	query :=
		`INSERT INTO memes (owner_id, description, image_path, visibility)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		meme.OwnerID, meme.Description, meme.ImagePath, meme.Visibility).Scan(&meme.ID, &meme.CreatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return meme, nil
}

func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string, id int64) (*models.Meme, error) {
	query := `SELECT ` + memeColumns + ` FROM memes
		 WHERE id = $1 AND owner_id = $2
		 `
	return r.getOne(ctx, query, id, ownerID)
}

func (r *PostgresRepository) GetPublic(ctx context.Context, ownerID string, id int64) (*models.Meme, error) {
	query := `SELECT ` + memeColumns + ` FROM memes
		 WHERE id = $1 AND owner_id = $2 AND visibility
		 `
	return r.getOne(ctx, query, id, ownerID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Meme, error) {
	m, err := scanMeme(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, page models.Page) ([]*models.Meme, error) {
	query := `SELECT ` + memeColumns + ` FROM memes
		 WHERE owner_id = $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3
		 `
	return r.list(ctx, query, ownerID, page.Size, page.Offset())
}

func (r *PostgresRepository) ListPublicByOwner(ctx context.Context, ownerID string, page models.Page) ([]*models.Meme, error) {
	query := `SELECT ` + memeColumns + ` FROM memes
		 WHERE owner_id = $1 AND visibility
		 ORDER BY id
		 LIMIT $2 OFFSET $3
		 `
	return r.list(ctx, query, ownerID, page.Size, page.Offset())
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Meme, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Meme, 0)
	for rows.Next() {
		m, err := scanMeme(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ownerID string, id int64, upd models.MemeUpdate) (*models.Meme, error) {
	query := `UPDATE memes SET
		 description = COALESCE($1, description),
		 visibility = COALESCE($2, visibility)
		 WHERE id = $3 AND owner_id = $4
		 RETURNING ` + memeColumns + `
		 `

	var desc, vis any
	if upd.Description != nil {
		desc = *upd.Description
	}
	if upd.Visibility != nil {
		vis = *upd.Visibility
	}

	return r.getOne(ctx, query, desc, vis, id, ownerID)
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID string, id int64) (string, error) {
	query :=
		`DELETE FROM memes
		 WHERE id = $1 AND owner_id = $2
		 RETURNING image_path
		 `

	var path string
	if err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return path, nil
}

func (r *PostgresRepository) ImagePathsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	query :=
		`SELECT image_path FROM memes
		 WHERE owner_id = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return paths, nil
}
