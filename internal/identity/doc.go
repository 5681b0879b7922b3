// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package identity implements the credential-and-identity lifecycle core.
//
// # Domain Types
//
// User is the identity record. Its lifecycle is a small state machine:
//
//	unverified(code C) --redeem C--> verified
//	verified --issue reset--> reset_pending(code R, 1h expiry)
//	reset_pending --redeem R before expiry--> verified, password updated
//	reset_pending --expiry elapses--> verified, code R dead (no auto-clear)
//
// # Services
//
// Service types coordinate domain operations:
//   - RegistrationService - account creation with atomic verification dispatch
//   - VerificationService - verification code redemption
//   - PasswordResetService - reset code issuance and redemption
//   - FederationService - find-or-create from external identity assertions
//   - TokenIssuer - signed credential-assertion tokens
//
// Services are created with New*Service constructors that validate
// dependencies, and every failure they return is a classified *Error
// carrying a transport status and a localized message.
//
// Lookups, hashing, and notification dispatch are the only blocking
// operations; no service holds in-process locks across them, so concurrent
// invocations interleave safely. Uniqueness under that interleaving is the
// storage layer's job: the repositories surface constraint violations as
// duplicate sentinels and the services translate them into the same
// validation errors as their pre-checks.
//
// Callers receive full entities, verification and reset codes included.
// Stripping those fields (and the password hash) before any external
// exposure is the caller's contractual obligation.
package identity
