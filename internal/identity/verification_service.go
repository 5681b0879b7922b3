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

// VerificationService redeems verification codes.
type VerificationService struct {
	users  UserRepository
	logger *slog.Logger
}

// NewVerificationService creates a new VerificationService.
func NewVerificationService(users UserRepository) (*VerificationService, error) {
	return NewVerificationServiceWithLogger(users, slog.Default())
}

// NewVerificationServiceWithLogger creates a new VerificationService with a
// custom logger.
func NewVerificationServiceWithLogger(users UserRepository, logger *slog.Logger) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &VerificationService{users: users, logger: logger}, nil
}

// Verify redeems a verification code: the holding user's code is cleared,
// which marks the account verified, and the updated user is returned.
// Redemption is exactly-once; a second call with the same code fails with a
// not-found error. Codes do not expire; they stay valid until redeemed.
func (s *VerificationService) Verify(ctx context.Context, code string) (user *User, err error) {
	defer func() { Verifications.WithLabelValues(statusOf(err)).Inc() }()

	if code == "" {
		return nil, NewNotFoundError(MsgUnknownVerifyCode)
	}

	user, lookupErr := s.users.GetByVerificationCode(ctx, code)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			return nil, NewNotFoundError(MsgUnknownVerifyCode)
		}
		return nil, NewDependencyError(MsgInternal, oops.Code("VERIFY_FAILED").
			With("operation", "get user by verification code").
			Wrap(lookupErr))
	}

	user.VerificationCode = nil
	user.UpdatedAt = time.Now()

	if updateErr := s.users.Update(ctx, user); updateErr != nil {
		return nil, NewDependencyError(MsgInternal, oops.Code("VERIFY_FAILED").
			With("operation", "clear verification code").
			With("user_id", user.ID.String()).
			Wrap(updateErr))
	}

	s.logger.Info("account verified", "user_id", user.ID.String())
	return user, nil
}
