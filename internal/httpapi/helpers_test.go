// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package httpapi_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/memoteca/identity/internal/files"
	"github.com/memoteca/identity/internal/httpapi"
	"github.com/memoteca/identity/internal/identity"
)

const testTokenSecret = "httpapi-test-secret"

// stubUserRepo is a minimal in-memory identity.UserRepository.
type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*identity.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*identity.User)}
}

func (r *stubUserRepo) Create(_ context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return identity.ErrDuplicateEmail
		}
		if strings.EqualFold(u.Username, user.Username) {
			return identity.ErrDuplicateUsername
		}
	}
	clone := *user
	r.users[user.ID.String()] = &clone
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID.String()]; !ok {
		return identity.ErrNotFound
	}
	clone := *user
	r.users[user.ID.String()] = &clone
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id ulid.ULID) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id.String()]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, identity.ErrNotFound
}

func (r *stubUserRepo) find(match func(*identity.User) bool) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *stubUserRepo) GetByVerificationCode(_ context.Context, code string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool {
		return u.VerificationCode != nil && *u.VerificationCode == code
	})
}

func (r *stubUserRepo) GetByResetCode(_ context.Context, code string) (*identity.User, error) {
	return r.find(func(u *identity.User) bool {
		return u.ResetCode != nil && *u.ResetCode == code
	})
}

func (r *stubUserRepo) InTx(_ context.Context, fn func(identity.UserRepository) error) error {
	r.mu.Lock()
	snapshot := make(map[string]*identity.User, len(r.users))
	for k, v := range r.users {
		clone := *v
		snapshot[k] = &clone
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.users = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

var _ identity.UserRepository = (*stubUserRepo)(nil)

type stubDispatcher struct{}

func (stubDispatcher) SendVerification(context.Context, *identity.User) error     { return nil }
func (stubDispatcher) SendResetInstructions(context.Context, *identity.User) error { return nil }

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", identity.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (stubHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(context.Context, ulid.ULID) (*identity.Attachment, error) {
	return nil, identity.ErrNotFound
}

// stubFileRepo and stubObjectStore back the file endpoints.
type stubFileRepo struct {
	mu   sync.Mutex
	rows map[ulid.ULID]*files.File
}

func newStubFileRepo() *stubFileRepo {
	return &stubFileRepo{rows: make(map[ulid.ULID]*files.File)}
}

func (r *stubFileRepo) Create(_ context.Context, file *files.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *file
	r.rows[file.ID] = &clone
	return nil
}

func (r *stubFileRepo) GetByID(_ context.Context, id ulid.ULID) (*files.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.rows[id]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, identity.ErrNotFound
}

func (r *stubFileRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

type stubObjectStore struct{}

func (stubObjectStore) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (stubObjectStore) Delete(context.Context, string) error { return nil }

type fixture struct {
	server *httpapi.Server
	users  *stubUserRepo
	issuer *identity.TokenIssuer
}

func newFixture(t *testing.T, withFiles bool) *fixture {
	t.Helper()

	users := newStubUserRepo()
	issuer, err := identity.NewTokenIssuer([]byte(testTokenSecret), time.Hour)
	require.NoError(t, err)

	registrations, err := identity.NewRegistrationService(users, stubResolver{}, stubDispatcher{}, stubHasher{})
	require.NoError(t, err)
	verifications, err := identity.NewVerificationService(users)
	require.NoError(t, err)
	resets, err := identity.NewPasswordResetService(users, stubDispatcher{}, stubHasher{})
	require.NoError(t, err)
	federation, err := identity.NewFederationService(users, issuer)
	require.NoError(t, err)

	var fileSvc *files.Service
	if withFiles {
		fileSvc, err = files.NewService(newStubFileRepo(), stubObjectStore{})
		require.NoError(t, err)
	}

	server, err := httpapi.NewServer(registrations, verifications, resets, federation, issuer, users, fileSvc, nil)
	require.NoError(t, err)

	return &fixture{server: server, users: users, issuer: issuer}
}

func (f *fixture) token(t *testing.T, user *identity.User) string {
	t.Helper()
	result, err := f.issuer.Issue(user)
	require.NoError(t, err)
	return result.Token
}
