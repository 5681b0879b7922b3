// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the credential-assertion token lifetime.
const DefaultTokenTTL = time.Hour

// TokenUser is the subject claim set embedded in a credential-assertion
// token. It carries only public identity fields.
type TokenUser struct {
	ID       string `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// TokenPayload is the claim payload as exposed to callers.
type TokenPayload struct {
	User TokenUser `json:"user"`
}

// TokenResult bundles a signed token with its payload.
type TokenResult struct {
	Token   string       `json:"token"`
	Payload TokenPayload `json:"payload"`
}

// Claims is the JWT claim set: registered claims plus the user payload.
type Claims struct {
	jwt.RegisteredClaims
	User TokenUser `json:"user"`
}

// TokenIssuer signs credential-assertion tokens for authenticated sessions.
// Tokens are ephemeral and never persisted.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. A ttl of zero falls back to
// DefaultTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl}, nil
}

// Issue signs a credential-assertion token for the user. Signing failures
// are dependency-class and carry no secret material.
func (i *TokenIssuer) Issue(user *User) (*TokenResult, error) {
	payload := TokenPayload{User: TokenUser{
		ID:       user.ID.String(),
		Fullname: user.Fullname,
		Email:    user.Email,
	}}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		User: payload.User,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, NewDependencyError(MsgInternal, oops.Code("TOKEN_SIGN_FAILED").Wrap(err))
	}

	return &TokenResult{Token: signed, Payload: payload}, nil
}

// Parse validates a signed token and returns its claims.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, oops.Code("TOKEN_PARSE_FAILED").Wrap(err)
	}
	if !token.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("invalid token")
	}
	return claims, nil
}
