// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package mailer

import (
	"context"
	"log/slog"

	"github.com/memoteca/identity/internal/identity"
)

// LogDispatcher is a development dispatcher that logs instead of sending.
// The codes themselves are never logged.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher. A nil logger uses the default.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// SendVerification logs a verification dispatch.
func (d *LogDispatcher) SendVerification(_ context.Context, user *identity.User) error {
	d.logger.Info("verification message (log dispatcher)", "user_id", user.ID.String())
	return nil
}

// SendResetInstructions logs a reset dispatch.
func (d *LogDispatcher) SendResetInstructions(_ context.Context, user *identity.User) error {
	d.logger.Info("reset instructions (log dispatcher)", "user_id", user.ID.String())
	return nil
}

// Compile-time interface check.
var _ identity.NotificationDispatcher = (*LogDispatcher)(nil)
