// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultAbout is the freeform bio every new account starts with.
const DefaultAbout = "Minha coleção engraçada"

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is an identity record. PasswordHash is nil for federation-only
// accounts; VerificationCode is present until the email is verified;
// ResetCode and ResetCodeExpiresAt are present only during an open reset
// window.
type User struct {
	ID                 ulid.ULID
	Fullname           string
	Username           string
	Email              string
	PasswordHash       *string
	Age                *int
	About              string
	VerificationCode   *string
	ResetCode          *string
	ResetCodeExpiresAt *time.Time
	AvatarID           *ulid.ULID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Verified reports whether the account's email has been verified. An account
// is verified once its verification code has been cleared, which also covers
// federated accounts that never receive a code.
func (u *User) Verified() bool {
	return u.VerificationCode == nil
}

// HasOpenResetWindow reports whether a reset code is outstanding and still
// valid at the given time.
func (u *User) HasOpenResetWindow(now time.Time) bool {
	return u.ResetCode != nil && u.ResetCodeExpiresAt != nil && now.Before(*u.ResetCodeExpiresAt)
}

// ClearResetCode closes the reset window.
func (u *User) ClearResetCode() {
	u.ResetCode = nil
	u.ResetCodeExpiresAt = nil
	u.UpdatedAt = time.Now()
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
//
// The returned error is a classified validation Error with a localized
// message.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return NewValidationError("O nome de usuário deve ter entre 3 e 30 caracteres.")
	}
	if !usernameRegex.MatchString(username) {
		return NewValidationError("O nome de usuário deve começar com uma letra e conter apenas letras, números e sublinhados.")
	}
	return nil
}

// UserRepository manages user persistence. Lookups return ErrNotFound (via
// errors.Is) when nothing matches; Create and Update surface
// ErrDuplicateEmail/ErrDuplicateUsername/ErrDuplicateCode when a storage
// uniqueness constraint is violated, which is the authoritative guard against
// concurrent duplicate writes.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByVerificationCode retrieves the user holding a verification code.
	GetByVerificationCode(ctx context.Context, code string) (*User, error)

	// GetByResetCode retrieves the user holding a reset code.
	GetByResetCode(ctx context.Context, code string) (*User, error)

	// InTx runs fn against a transactional view of the repository. The
	// transaction commits when fn returns nil and rolls back otherwise, so
	// any side effect invoked inside fn that fails unwinds the writes too.
	InTx(ctx context.Context, fn func(UserRepository) error) error
}
