// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// ResetCodeExpiry is how long a reset code stays redeemable.
const ResetCodeExpiry = time.Hour

// PasswordResetService issues and redeems password reset codes.
type PasswordResetService struct {
	users      UserRepository
	dispatcher NotificationDispatcher
	hasher     PasswordHasher
	codes      CodeGenerator
	logger     *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	dispatcher NotificationDispatcher,
	hasher PasswordHasher,
) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, dispatcher, hasher, slog.Default())
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService with a
// custom logger.
func NewPasswordResetServiceWithLogger(
	users UserRepository,
	dispatcher NotificationDispatcher,
	hasher PasswordHasher,
	logger *slog.Logger,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
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
	return &PasswordResetService{
		users:      users,
		dispatcher: dispatcher,
		hasher:     hasher,
		logger:     logger,
	}, nil
}

// RequestReset opens a reset window for the account holding the given email:
// a unique reset code with a one-hour expiry is persisted and the reset
// instructions are dispatched. An unknown email returns nil with no side
// effect, so the response never reveals whether an account exists.
//
// Persistence and dispatch are deliberately not transactional here: if the
// dispatch fails the persisted code stands, which is safe because redemption
// re-validates the code and its expiry.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (err error) {
	defer func() { PasswordResets.WithLabelValues("issue", statusOf(err)).Inc() }()

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Success-shaped no-op to prevent email enumeration.
			s.logger.Debug("reset requested for unknown email")
			return nil
		}
		return NewDependencyError(MsgInternal, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr))
	}

	code, codeErr := s.codes.Unique(ctx, s.resetCodeTaken)
	if codeErr != nil {
		return NewDependencyError(MsgInternal, codeErr)
	}

	expiresAt := time.Now().Add(ResetCodeExpiry)
	user.ResetCode = &code
	user.ResetCodeExpiresAt = &expiresAt
	user.UpdatedAt = time.Now()

	if updateErr := s.users.Update(ctx, user); updateErr != nil {
		return NewDependencyError(MsgInternal, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset code").
			With("user_id", user.ID.String()).
			Wrap(updateErr))
	}

	if dispatchErr := s.dispatcher.SendResetInstructions(ctx, user); dispatchErr != nil {
		return NewDependencyError(MsgInternal, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "dispatch reset instructions").
			With("user_id", user.ID.String()).
			Wrap(dispatchErr))
	}

	s.logger.Info("reset window opened", "user_id", user.ID.String())
	return nil
}

// ResetPassword redeems a reset code: the new password is hashed and
// persisted and the reset window is closed. The password and its
// confirmation must match, and the code must resolve to an open, unexpired
// reset window. An expired window is not auto-cleared; it simply stops
// resolving here.
func (s *PasswordResetService) ResetPassword(ctx context.Context, code, password, passwordConfirm string) (err error) {
	defer func() { PasswordResets.WithLabelValues("redeem", statusOf(err)).Inc() }()

	if password != passwordConfirm {
		return NewValidationError(MsgPasswordMismatch)
	}
	if code == "" {
		return NewValidationError(MsgInvalidResetCode)
	}

	user, lookupErr := s.users.GetByResetCode(ctx, code)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			return NewValidationError(MsgInvalidResetCode)
		}
		return NewDependencyError(MsgInternal, oops.Code("RESET_REDEEM_FAILED").
			With("operation", "get user by reset code").
			Wrap(lookupErr))
	}

	if !user.HasOpenResetWindow(time.Now()) {
		return NewValidationError(MsgInvalidResetCode)
	}

	hash, hashErr := s.hasher.Hash(password)
	if hashErr != nil {
		if errors.Is(hashErr, ErrEmptyPassword) {
			return NewValidationError(MsgEmptyPassword)
		}
		return NewDependencyError(MsgInternal, oops.Code("RESET_REDEEM_FAILED").
			With("operation", "hash password").
			Wrap(hashErr))
	}

	user.PasswordHash = &hash
	user.ClearResetCode()

	if updateErr := s.users.Update(ctx, user); updateErr != nil {
		return NewDependencyError(MsgInternal, oops.Code("RESET_REDEEM_FAILED").
			With("operation", "persist new password").
			With("user_id", user.ID.String()).
			Wrap(updateErr))
	}

	s.logger.Info("password reset", "user_id", user.ID.String())
	return nil
}

// resetCodeTaken reports whether a reset code is outstanding.
func (s *PasswordResetService) resetCodeTaken(ctx context.Context, code string) (bool, error) {
	_, err := s.users.GetByResetCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
