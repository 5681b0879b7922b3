// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"errors"
	"net/http"
)

// Sentinel errors returned by repositories. Services match on these with
// errors.Is and translate them into classified Errors for callers.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an insert violates the email
	// uniqueness constraint.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateUsername is returned when an insert violates the username
	// uniqueness constraint.
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrDuplicateCode is returned when an insert or update violates a
	// verification/reset code uniqueness constraint.
	ErrDuplicateCode = errors.New("code already in use")
)

// Kind classifies a service failure. The set is closed: callers switch on
// Kind instead of inspecting error shapes.
type Kind int

const (
	// KindValidation covers caller mistakes: duplicate email/username,
	// invalid username format, mismatched password confirmation, invalid
	// attachment reference.
	KindValidation Kind = iota + 1

	// KindNotFound covers lookups that matched nothing: unknown verification
	// code, unknown user.
	KindNotFound

	// KindDependency covers failures of hashing, persistence, signing, or
	// notification dispatch.
	KindDependency
)

// User-facing messages. The service speaks Portuguese to its users.
const (
	MsgEmailTaken        = "E-mail já registrado."
	MsgUsernameTaken     = "Nome de usuário já registrado."
	MsgInvalidAttachment = "ID de arquivo inválido."
	MsgEmptyPassword     = "A senha não pode estar vazia."
	MsgPasswordMismatch  = "As senhas não conferem."
	MsgUnknownVerifyCode = "Código de verificação inválido."
	MsgInvalidResetCode  = "Código de redefinição inválido ou expirado."
	MsgUserNotFound      = "Usuário não foi encontrado."
	MsgInternal          = "Não foi possível concluir a operação."
)

// Error is the failure value every service method returns. It carries a
// transport status and a human-readable, localized message; the wrapped
// cause keeps the full diagnostic chain for logs.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether retrying the same call may succeed. Only
// dependency failures are retryable; validation and not-found failures are
// deterministic until the conflicting state changes.
func (e *Error) Retryable() bool { return e.Kind == KindDependency }

// NewValidationError builds a 400-class validation failure.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// NewNotFoundError builds a 404-class lookup failure.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

// NewDependencyError builds a 500-class failure wrapping its cause.
func NewDependencyError(message string, cause error) *Error {
	return &Error{Kind: KindDependency, Status: http.StatusInternalServerError, Message: message, cause: cause}
}

// AsError extracts a classified *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
