// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package postgres provides the PostgreSQL implementation of the file
// repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memoteca/identity/internal/files"
	"github.com/memoteca/identity/internal/identity"
	idpg "github.com/memoteca/identity/internal/identity/postgres"
)

// FileRepository implements files.FileRepository using PostgreSQL.
type FileRepository struct {
	db idpg.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db idpg.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create stores a new file row.
func (r *FileRepository) Create(ctx context.Context, file *files.File) error {
	var ownerID *string
	if file.OwnerID != nil {
		s := file.OwnerID.String()
		ownerID = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO files (id, owner_id, name, key, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		file.ID.String(),
		ownerID,
		file.Name,
		file.Key,
		file.Location,
		file.CreatedAt,
	)
	if err != nil {
		return oops.Code("FILE_CREATE_FAILED").
			With("operation", "insert file").
			With("id", file.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a file by ID.
func (r *FileRepository) GetByID(ctx context.Context, id ulid.ULID) (*files.File, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, key, location, created_at
		FROM files
		WHERE id = $1
	`, id.String())

	var (
		idStr      string
		ownerIDStr *string
		name       string
		key        string
		location   string
		createdAt  time.Time
	)
	err := row.Scan(&idStr, &ownerIDStr, &name, &key, &location, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("FILE_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("FILE_GET_FAILED").
			With("operation", "get file by id").
			With("id", id.String()).
			Wrap(err)
	}

	parsed, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("FILE_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	var ownerID *ulid.ULID
	if ownerIDStr != nil {
		owner, err := ulid.Parse(*ownerIDStr)
		if err != nil {
			return nil, oops.Code("FILE_INVALID_OWNER_ID").
				With("owner_id", *ownerIDStr).
				Wrap(err)
		}
		ownerID = &owner
	}

	return &files.File{
		ID:        parsed,
		OwnerID:   ownerID,
		Name:      name,
		Key:       key,
		Location:  location,
		CreatedAt: createdAt,
	}, nil
}

// Delete removes a file row.
func (r *FileRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM files WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("FILE_DELETE_FAILED").
			With("operation", "delete file").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("FILE_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ files.FileRepository = (*FileRepository)(nil)
