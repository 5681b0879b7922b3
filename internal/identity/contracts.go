// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Attachment is a reference to an externally-owned stored file. The identity
// core validates its existence at creation time and never mutates it.
type Attachment struct {
	ID       ulid.ULID
	Name     string
	Location string
}

// AttachmentResolver resolves an attachment id to a stored-file reference.
// Resolve returns ErrNotFound (via errors.Is) when the id is unknown.
type AttachmentResolver interface {
	Resolve(ctx context.Context, id ulid.ULID) (*Attachment, error)
}

// NotificationDispatcher delivers lifecycle messages to a user. Both methods
// block until the message is handed off; an error means no handoff happened.
type NotificationDispatcher interface {
	// SendVerification sends the email-ownership verification message. The
	// user's VerificationCode must be set.
	SendVerification(ctx context.Context, user *User) error

	// SendResetInstructions sends the password-reset instructions. The user's
	// ResetCode must be set.
	SendResetInstructions(ctx context.Context, user *User) error
}
