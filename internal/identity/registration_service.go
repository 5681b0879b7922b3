// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RegisterInput carries the validated request fields for account creation.
type RegisterInput struct {
	Fullname     string
	Age          *int
	Email        string
	Password     string
	AttachmentID *ulid.ULID
	Username     string
}

// RegistrationService orchestrates account creation: uniqueness checks,
// password hashing, verification code generation, and the transaction that
// couples persistence with the verification dispatch.
type RegistrationService struct {
	users       UserRepository
	attachments AttachmentResolver
	dispatcher  NotificationDispatcher
	hasher      PasswordHasher
	codes       CodeGenerator
	logger      *slog.Logger
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(
	users UserRepository,
	attachments AttachmentResolver,
	dispatcher NotificationDispatcher,
	hasher PasswordHasher,
) (*RegistrationService, error) {
	return NewRegistrationServiceWithLogger(users, attachments, dispatcher, hasher, slog.Default())
}

// NewRegistrationServiceWithLogger creates a new RegistrationService with a
// custom logger.
func NewRegistrationServiceWithLogger(
	users UserRepository,
	attachments AttachmentResolver,
	dispatcher NotificationDispatcher,
	hasher PasswordHasher,
	logger *slog.Logger,
) (*RegistrationService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if attachments == nil {
		return nil, oops.Errorf("attachment resolver is required")
	}
	if dispatcher == nil {
		return nil, oops.Errorf("notification dispatcher is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &RegistrationService{
		users:       users,
		attachments: attachments,
		dispatcher:  dispatcher,
		hasher:      hasher,
		logger:      logger,
	}, nil
}

// Register creates a new unverified account and dispatches its verification
// message. The persisted row and the dispatch are a single unit of work: a
// failed dispatch rolls the creation back, so a user never exists without a
// verification attempt.
//
// The pre-insert lookups exist only to produce friendly duplicate messages;
// the storage uniqueness constraints are the authority, and a constraint
// violation at insert time is translated into the same 400-class error.
//
// The returned user still carries its verification code; callers must strip
// it (and the password hash) before external exposure.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (user *User, err error) {
	defer func() { Registrations.WithLabelValues(statusOf(err)).Inc() }()

	if _, lookupErr := s.users.GetByEmail(ctx, in.Email); lookupErr == nil {
		return nil, NewValidationError(MsgEmailTaken)
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return nil, NewDependencyError(MsgInternal, oops.Code("REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr))
	}

	if _, lookupErr := s.users.GetByUsername(ctx, in.Username); lookupErr == nil {
		return nil, NewValidationError(MsgUsernameTaken)
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return nil, NewDependencyError(MsgInternal, oops.Code("REGISTER_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr))
	}

	if validateErr := ValidateUsername(in.Username); validateErr != nil {
		return nil, validateErr
	}

	if in.AttachmentID != nil {
		if _, resolveErr := s.attachments.Resolve(ctx, *in.AttachmentID); resolveErr != nil {
			if errors.Is(resolveErr, ErrNotFound) {
				return nil, NewValidationError(MsgInvalidAttachment)
			}
			return nil, NewDependencyError(MsgInternal, oops.Code("REGISTER_FAILED").
				With("operation", "resolve attachment").
				Wrap(resolveErr))
		}
	}

	hash, hashErr := s.hasher.Hash(in.Password)
	if hashErr != nil {
		if errors.Is(hashErr, ErrEmptyPassword) {
			return nil, NewValidationError(MsgEmptyPassword)
		}
		return nil, NewDependencyError(MsgInternal, oops.Code("REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(hashErr))
	}

	code, codeErr := s.codes.Unique(ctx, s.verificationCodeTaken)
	if codeErr != nil {
		return nil, NewDependencyError(MsgInternal, codeErr)
	}

	now := time.Now()
	user = &User{
		ID:               ulid.Make(),
		Fullname:         in.Fullname,
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     &hash,
		Age:              in.Age,
		About:            DefaultAbout,
		VerificationCode: &code,
		AvatarID:         in.AttachmentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	txErr := s.users.InTx(ctx, func(tx UserRepository) error {
		if createErr := tx.Create(ctx, user); createErr != nil {
			return createErr
		}
		return s.dispatcher.SendVerification(ctx, user)
	})
	if txErr != nil {
		switch {
		case errors.Is(txErr, ErrDuplicateEmail):
			return nil, NewValidationError(MsgEmailTaken)
		case errors.Is(txErr, ErrDuplicateUsername):
			return nil, NewValidationError(MsgUsernameTaken)
		default:
			return nil, NewDependencyError(MsgInternal, oops.Code("REGISTER_FAILED").
				With("operation", "create user and dispatch verification").
				With("username", in.Username).
				Wrap(txErr))
		}
	}

	s.logger.Info("account created",
		"user_id", user.ID.String(),
		"username", user.Username,
	)
	return user, nil
}

// verificationCodeTaken reports whether a verification code is outstanding.
func (s *RegistrationService) verificationCodeTaken(ctx context.Context, code string) (bool, error) {
	_, err := s.users.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
