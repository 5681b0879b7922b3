// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Code configuration.
const (
	CodeLength = 8 // characters

	// maxCodeAttempts bounds the generate-and-check loop. Collisions on an
	// 8-character alphanumeric code are vanishingly rare, so hitting the
	// bound means the repository is misbehaving and we fail closed.
	maxCodeAttempts = 5
)

// codeAlphabet is lowercase alphanumeric, matching the codes users type back
// from verification and reset emails.
const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var errCodeTaken = errors.New("code already taken")

// CodeGenerator produces short random alphanumeric codes for email
// verification and password reset.
type CodeGenerator struct{}

// Generate returns a new random code of CodeLength characters.
func (CodeGenerator) Generate() (string, error) {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", oops.Code("IDENTITY_CODE_GENERATE_FAILED").Wrap(err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Unique generates a code that the taken func reports as unused. Codes are
// single-use: the holding field is cleared on redemption, so a freshly
// generated code only collides with a still-outstanding one. The loop is
// bounded; past maxCodeAttempts it fails with a dependency error.
func (g CodeGenerator) Unique(ctx context.Context, taken func(context.Context, string) (bool, error)) (string, error) {
	var code string
	b := retry.WithMaxRetries(maxCodeAttempts-1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := g.Generate()
		if err != nil {
			return err
		}
		inUse, err := taken(ctx, c)
		if err != nil {
			return oops.Code("IDENTITY_CODE_CHECK_FAILED").Wrap(err)
		}
		if inUse {
			return retry.RetryableError(errCodeTaken)
		}
		code = c
		return nil
	})
	if err != nil {
		return "", oops.Code("IDENTITY_CODE_UNIQUE_FAILED").
			With("max_attempts", maxCodeAttempts).
			Wrap(err)
	}
	return code, nil
}
