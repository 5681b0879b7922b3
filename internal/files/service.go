// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memoteca/identity/internal/identity"
)

// MaxExternalFetchBytes caps how much CreateFromURL will download.
const MaxExternalFetchBytes = 10 << 20 // 10 MiB

// Service coordinates file rows and object storage.
type Service struct {
	repo   FileRepository
	store  ObjectStore
	client *http.Client
	logger *slog.Logger
}

// NewService creates a new file Service.
func NewService(repo FileRepository, store ObjectStore) (*Service, error) {
	return NewServiceWithLogger(repo, store, slog.Default())
}

// NewServiceWithLogger creates a new file Service with a custom logger.
func NewServiceWithLogger(repo FileRepository, store ObjectStore, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("file repository is required")
	}
	if store == nil {
		return nil, oops.Errorf("object store is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		repo:   repo,
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

// Create stores body in object storage and records a file row for it.
func (s *Service) Create(ctx context.Context, ownerID ulid.ULID, name, contentType string, body []byte) (*File, error) {
	if len(body) == 0 {
		return nil, identity.NewValidationError("Arquivo vazio.")
	}

	key := StorageKey()
	location, err := s.store.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, identity.NewDependencyError(identity.MsgInternal, err)
	}

	file := &File{
		ID:        ulid.Make(),
		OwnerID:   &ownerID,
		Name:      name,
		Key:       key,
		Location:  location,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, file); err != nil {
		// Best-effort cleanup of the orphaned object.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to delete orphaned object", "key", key, "error", delErr)
		}
		return nil, identity.NewDependencyError(identity.MsgInternal, err)
	}

	s.logger.Info("file stored", "file_id", file.ID.String(), "key", key)
	return file, nil
}

// CreateFromURL downloads rawURL (up to MaxExternalFetchBytes) and stores it
// like Create does.
func (s *Service) CreateFromURL(ctx context.Context, ownerID ulid.ULID, rawURL string) (*File, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, identity.NewValidationError("URL inválida.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, identity.NewValidationError("URL inválida.")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, identity.NewDependencyError(identity.MsgInternal,
			oops.Code("FILE_FETCH_FAILED").With("url", rawURL).Wrap(err))
	}
	defer resp.Body.Close() //nolint:errcheck // read side only

	if resp.StatusCode != http.StatusOK {
		return nil, identity.NewValidationError("URL inválida.")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxExternalFetchBytes+1))
	if err != nil {
		return nil, identity.NewDependencyError(identity.MsgInternal,
			oops.Code("FILE_FETCH_FAILED").With("url", rawURL).Wrap(err))
	}
	if len(body) > MaxExternalFetchBytes {
		return nil, identity.NewValidationError("Arquivo excede o tamanho máximo.")
	}

	name := path.Base(parsed.Path)
	if name == "/" || name == "." || name == "" {
		name = "external"
	}
	return s.Create(ctx, ownerID, name, resp.Header.Get("Content-Type"), body)
}

// Remove deletes a file's object and row. Only the owner may remove a file.
func (s *Service) Remove(ctx context.Context, ownerID, id ulid.ULID) error {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.NewValidationError(identity.MsgInvalidAttachment)
		}
		return identity.NewDependencyError(identity.MsgInternal, err)
	}

	if file.OwnerID == nil || file.OwnerID.Compare(ownerID) != 0 {
		return identity.NewValidationError(identity.MsgInvalidAttachment)
	}

	if err := s.store.Delete(ctx, file.Key); err != nil {
		return identity.NewDependencyError(identity.MsgInternal, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return identity.NewDependencyError(identity.MsgInternal, err)
	}

	s.logger.Info("file removed", "file_id", id.String())
	return nil
}

// Resolver adapts a FileRepository to the identity attachment contract.
type Resolver struct {
	repo FileRepository
}

// NewResolver creates a Resolver.
func NewResolver(repo FileRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve looks up an attachment by id. Unknown ids propagate
// identity.ErrNotFound in the error chain.
func (r *Resolver) Resolve(ctx context.Context, id ulid.ULID) (*identity.Attachment, error) {
	file, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err //nolint:wrapcheck // repository already wraps with context
	}
	return &identity.Attachment{
		ID:       file.ID,
		Name:     file.Name,
		Location: file.Location,
	}, nil
}

// Compile-time interface check.
var _ identity.AttachmentResolver = (*Resolver)(nil)
