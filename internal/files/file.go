// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package files manages stored attachments: database rows describing each
// file plus the object storage holding its bytes. The identity core consumes
// it only through the attachment resolver.
package files

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// File describes a stored attachment.
type File struct {
	ID        ulid.ULID
	OwnerID   *ulid.ULID
	Name      string // original filename
	Key       string // object storage key
	Location  string // public URL of the stored object
	CreatedAt time.Time
}

// FileRepository manages file row persistence. Lookups return
// identity.ErrNotFound (via errors.Is) when nothing matches.
type FileRepository interface {
	// Create stores a new file row.
	Create(ctx context.Context, file *File) error

	// GetByID retrieves a file by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*File, error)

	// Delete removes a file row.
	Delete(ctx context.Context, id ulid.ULID) error
}

// ObjectStore holds file bytes under opaque keys.
type ObjectStore interface {
	// Put stores body under key and returns the public location.
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)

	// Delete removes the object under key.
	Delete(ctx context.Context, key string) error
}
