// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity_test

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/memoteca/identity/internal/identity"
)

// memoryUserRepo is an in-memory identity.UserRepository. InTx snapshots the
// state and restores it when fn fails, mirroring transaction rollback.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*identity.User

	// Optional hooks. A non-nil error short-circuits the default behavior.
	onCreate func(*identity.User) error
	onUpdate func(*identity.User) error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*identity.User)}
}

func cloneUser(u *identity.User) *identity.User {
	c := *u
	if u.PasswordHash != nil {
		v := *u.PasswordHash
		c.PasswordHash = &v
	}
	if u.Age != nil {
		v := *u.Age
		c.Age = &v
	}
	if u.VerificationCode != nil {
		v := *u.VerificationCode
		c.VerificationCode = &v
	}
	if u.ResetCode != nil {
		v := *u.ResetCode
		c.ResetCode = &v
	}
	if u.ResetCodeExpiresAt != nil {
		v := *u.ResetCodeExpiresAt
		c.ResetCodeExpiresAt = &v
	}
	if u.AvatarID != nil {
		v := *u.AvatarID
		c.AvatarID = &v
	}
	return &c
}

// add seeds a user directly, bypassing hooks and uniqueness checks.
func (r *memoryUserRepo) add(u *identity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID.String()] = cloneUser(u)
}

func (r *memoryUserRepo) get(id ulid.ULID) *identity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id.String()]; ok {
		return cloneUser(u)
	}
	return nil
}

func (r *memoryUserRepo) Create(_ context.Context, user *identity.User) error {
	if r.onCreate != nil {
		if err := r.onCreate(user); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return identity.ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, user.Username) {
			return identity.ErrDuplicateUsername
		}
	}
	r.users[user.ID.String()] = cloneUser(user)
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *identity.User) error {
	if r.onUpdate != nil {
		if err := r.onUpdate(user); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID.String()]; !ok {
		return identity.ErrNotFound
	}
	r.users[user.ID.String()] = cloneUser(user)
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id ulid.ULID) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id.String()]; ok {
		return cloneUser(u), nil
	}
	return nil, identity.ErrNotFound
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (r *memoryUserRepo) GetByUsername(_ context.Context, username string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (r *memoryUserRepo) GetByVerificationCode(_ context.Context, code string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.VerificationCode != nil && *u.VerificationCode == code {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (r *memoryUserRepo) GetByResetCode(_ context.Context, code string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetCode != nil && *u.ResetCode == code {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (r *memoryUserRepo) InTx(_ context.Context, fn func(identity.UserRepository) error) error {
	r.mu.Lock()
	snapshot := make(map[string]*identity.User, len(r.users))
	for k, v := range r.users {
		snapshot[k] = cloneUser(v)
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

var _ identity.UserRepository = (*memoryUserRepo)(nil)

// fakeDispatcher records dispatch calls and fails on demand.
type fakeDispatcher struct {
	mu            sync.Mutex
	verifications []identity.User
	resets        []identity.User

	verifyErr error
	resetErr  error
}

func (d *fakeDispatcher) SendVerification(_ context.Context, user *identity.User) error {
	if d.verifyErr != nil {
		return d.verifyErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifications = append(d.verifications, *cloneUser(user))
	return nil
}

func (d *fakeDispatcher) SendResetInstructions(_ context.Context, user *identity.User) error {
	if d.resetErr != nil {
		return d.resetErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets = append(d.resets, *cloneUser(user))
	return nil
}

var _ identity.NotificationDispatcher = (*fakeDispatcher)(nil)

// fakeResolver resolves attachments from a fixed map.
type fakeResolver struct {
	attachments map[ulid.ULID]*identity.Attachment
	resolveErr  error
}

func (r *fakeResolver) Resolve(_ context.Context, id ulid.ULID) (*identity.Attachment, error) {
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	if a, ok := r.attachments[id]; ok {
		return a, nil
	}
	return nil, identity.ErrNotFound
}

var _ identity.AttachmentResolver = (*fakeResolver)(nil)

// fakeHasher hashes deterministically so service tests stay fast.
type fakeHasher struct {
	hashErr error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	if password == "" {
		return "", identity.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, encodedHash string) (bool, error) {
	return encodedHash == "hashed:"+password, nil
}

var _ identity.PasswordHasher = (*fakeHasher)(nil)
