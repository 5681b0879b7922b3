// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Assertion is an already-validated external identity assertion. Picture is
// an external image URL; it is recorded nowhere because avatars are owned
// attachments, not remote references.
type Assertion struct {
	Name    string
	Email   string
	Picture *string
}

// FederationService finds or creates local accounts from external identity
// assertions and issues credential-assertion tokens for them.
type FederationService struct {
	users  UserRepository
	issuer *TokenIssuer
	codes  CodeGenerator
	logger *slog.Logger
}

// NewFederationService creates a new FederationService.
func NewFederationService(users UserRepository, issuer *TokenIssuer) (*FederationService, error) {
	return NewFederationServiceWithLogger(users, issuer, slog.Default())
}

// NewFederationServiceWithLogger creates a new FederationService with a
// custom logger.
func NewFederationServiceWithLogger(users UserRepository, issuer *TokenIssuer, logger *slog.Logger) (*FederationService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if issuer == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &FederationService{users: users, issuer: issuer, logger: logger}, nil
}

// FindOrCreate returns the account holding the asserted email, creating it
// first if none exists. Created accounts have no local password and no
// verification code: a federated identity implies a verified email by
// policy. The call is idempotent: repeated assertions with the same email
// always resolve to the same account.
func (s *FederationService) FindOrCreate(ctx context.Context, a Assertion) (*User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, a.Email)
	if lookupErr == nil {
		Federations.WithLabelValues("existing").Inc()
		return user, nil
	}
	if !errors.Is(lookupErr, ErrNotFound) {
		return nil, NewDependencyError(MsgInternal, oops.Code("FEDERATION_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr))
	}

	username, usernameErr := s.availableUsername(ctx, a.Email)
	if usernameErr != nil {
		return nil, NewDependencyError(MsgInternal, usernameErr)
	}

	now := time.Now()
	user = &User{
		ID:        ulid.Make(),
		Fullname:  a.Name,
		Username:  username,
		Email:     a.Email,
		About:     DefaultAbout,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if createErr := s.users.Create(ctx, user); createErr != nil {
		// A concurrent assertion for the same email may have won the insert;
		// the constraint makes that visible and the existing row is the answer.
		if errors.Is(createErr, ErrDuplicateEmail) {
			existing, refetchErr := s.users.GetByEmail(ctx, a.Email)
			if refetchErr == nil {
				Federations.WithLabelValues("existing").Inc()
				return existing, nil
			}
		}
		return nil, NewDependencyError(MsgInternal, oops.Code("FEDERATION_FAILED").
			With("operation", "create federated user").
			Wrap(createErr))
	}

	Federations.WithLabelValues("created").Inc()
	s.logger.Info("federated account created",
		"user_id", user.ID.String(),
		"username", user.Username,
	)
	return user, nil
}

// Authenticate resolves the assertion to an account and signs a
// credential-assertion token for it.
func (s *FederationService) Authenticate(ctx context.Context, a Assertion) (*TokenResult, error) {
	user, err := s.FindOrCreate(ctx, a)
	if err != nil {
		return nil, err
	}

	result, issueErr := s.issuer.Issue(user)
	if issueErr != nil {
		return nil, issueErr
	}
	return result, nil
}

// availableUsername derives a valid, unused username from the email local
// part, falling back to random suffixes when the plain form is taken. The
// loop is bounded like the code generator's.
func (s *FederationService) availableUsername(ctx context.Context, email string) (string, error) {
	base := usernameFromEmail(email)

	candidate := base
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		_, err := s.users.GetByUsername(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", oops.Code("FEDERATION_USERNAME_FAILED").
				With("operation", "get user by username").
				Wrap(err)
		}

		suffix, genErr := s.codes.Generate()
		if genErr != nil {
			return "", genErr
		}
		candidate = truncate(base, MaxUsernameLength-5) + "_" + suffix[:4]
	}
	return "", oops.Code("FEDERATION_USERNAME_FAILED").
		With("max_attempts", maxCodeAttempts).
		Errorf("no available username for federated account")
}

// usernameFromEmail sanitizes the email local part into a valid username.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.', r == '-', r == '+':
			b.WriteRune('_')
		}
	}
	name := b.String()

	if name == "" || !(name[0] >= 'a' && name[0] <= 'z' || name[0] >= 'A' && name[0] <= 'Z') {
		name = "u" + name
	}
	for len(name) < MinUsernameLength {
		name += "0"
	}
	return truncate(name, MaxUsernameLength)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
