// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package postgres provides PostgreSQL implementations of identity
// repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memoteca/identity/internal/identity"
)

// DB is the subset of pgxpool.Pool the repositories use. pgx.Tx satisfies it
// too, which is what lets a repository run inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Unique constraint names from the users migrations. translateUnique depends
// on these matching the schema.
const (
	constraintEmail      = "users_email_key"
	constraintUsername   = "users_username_key"
	constraintVerifyCode = "users_verification_code_key"
	constraintResetCode  = "users_reset_code_key"
)

// UserRepository implements identity.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, fullname, username, email, password_hash, age, about,
		       verification_code, reset_code, reset_code_expires_at,
		       avatar_id, created_at, updated_at`

// Create stores a new user. Constraint violations surface as the duplicate
// sentinels so two concurrent creations with the same email, username, or
// code can never both succeed.
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	var avatarID *string
	if user.AvatarID != nil {
		s := user.AvatarID.String()
		avatarID = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, fullname, username, email, password_hash, age, about,
			verification_code, reset_code, reset_code_expires_at,
			avatar_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		user.ID.String(),
		user.Fullname,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Age,
		user.About,
		user.VerificationCode,
		user.ResetCode,
		user.ResetCodeExpiresAt,
		avatarID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := translateUnique(err); dup != nil {
			return dup
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// Update updates an existing user.
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	var avatarID *string
	if user.AvatarID != nil {
		s := user.AvatarID.String()
		avatarID = &s
	}

	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			fullname = $2,
			username = $3,
			email = $4,
			password_hash = $5,
			age = $6,
			about = $7,
			verification_code = $8,
			reset_code = $9,
			reset_code_expires_at = $10,
			avatar_id = $11,
			updated_at = $12
		WHERE id = $1
	`,
		user.ID.String(),
		user.Fullname,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Age,
		user.About,
		user.VerificationCode,
		user.ResetCode,
		user.ResetCodeExpiresAt,
		avatarID,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := translateUnique(err); dup != nil {
			return dup
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByVerificationCode retrieves the user holding a verification code.
func (r *UserRepository) GetByVerificationCode(ctx context.Context, code string) (*identity.User, error) {
	return r.getByCode(ctx, "verification_code", code)
}

// GetByResetCode retrieves the user holding a reset code.
func (r *UserRepository) GetByResetCode(ctx context.Context, code string) (*identity.User, error) {
	return r.getByCode(ctx, "reset_code", code)
}

func (r *UserRepository) getByCode(ctx context.Context, column, code string) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+column+` = $1
	`, code)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("code_field", column).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_CODE_FAILED").
			With("operation", "get user by code").
			With("code_field", column).
			Wrap(err)
	}
	return user, nil
}

// InTx runs fn against a transactional repository. The transaction commits
// only when fn returns nil; any error, including one from a side effect fn
// invokes between writes, rolls everything back.
func (r *UserRepository) InTx(ctx context.Context, fn func(identity.UserRepository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("USER_TX_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&UserRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("USER_TX_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// translateUnique maps a unique-constraint violation to its duplicate
// sentinel, or returns nil if err is something else.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintEmail:
		return oops.Code("USER_DUPLICATE").With("constraint", pgErr.ConstraintName).Wrap(identity.ErrDuplicateEmail)
	case constraintUsername:
		return oops.Code("USER_DUPLICATE").With("constraint", pgErr.ConstraintName).Wrap(identity.ErrDuplicateUsername)
	case constraintVerifyCode, constraintResetCode:
		return oops.Code("USER_DUPLICATE").With("constraint", pgErr.ConstraintName).Wrap(identity.ErrDuplicateCode)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*identity.User, error) {
	var (
		idStr              string
		fullname           string
		username           string
		email              string
		passwordHash       *string
		age                *int
		about              string
		verificationCode   *string
		resetCode          *string
		resetCodeExpiresAt *time.Time
		avatarIDStr        *string
		createdAt          time.Time
		updatedAt          time.Time
	)

	err := row.Scan(
		&idStr,
		&fullname,
		&username,
		&email,
		&passwordHash,
		&age,
		&about,
		&verificationCode,
		&resetCode,
		&resetCodeExpiresAt,
		&avatarIDStr,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	var avatarID *ulid.ULID
	if avatarIDStr != nil {
		parsed, err := ulid.Parse(*avatarIDStr)
		if err != nil {
			return nil, oops.Code("USER_INVALID_AVATAR_ID").
				With("operation", "parse avatar id").
				With("avatar_id", *avatarIDStr).
				Wrap(err)
		}
		avatarID = &parsed
	}

	return &identity.User{
		ID:                 id,
		Fullname:           fullname,
		Username:           username,
		Email:              email,
		PasswordHash:       passwordHash,
		Age:                age,
		About:              about,
		VerificationCode:   verificationCode,
		ResetCode:          resetCode,
		ResetCodeExpiresAt: resetCodeExpiresAt,
		AvatarID:           avatarID,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

// Compile-time interface check.
var _ identity.UserRepository = (*UserRepository)(nil)
