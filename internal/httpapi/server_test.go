// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoteca/identity/internal/identity"
)

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func registerUser(t *testing.T, f *fixture, username, email string) *identity.User {
	t.Helper()
	rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users", map[string]any{
		"fullname": "Dora Exploradora",
		"username": username,
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	user, err := f.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return user
}

func TestHandleRegister(t *testing.T) {
	t.Run("creates an account", func(t *testing.T) {
		f := newFixture(t, false)

		rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users", map[string]any{
			"fullname": "Dora Exploradora",
			"username": "dora",
			"email":    "dora@example.com",
			"password": "hunter22",
		})
		require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

		view := decodeBody(t, rec)
		assert.Equal(t, "dora", view["username"])
		assert.Equal(t, "dora@example.com", view["email"])
		assert.Equal(t, false, view["verified"])
		assert.NotEmpty(t, view["id"])
		assert.NotEmpty(t, view["created_at"])

		// Secret fields never reach the wire.
		raw := rec.Body.String()
		assert.NotContains(t, raw, "password")
		assert.NotContains(t, raw, "verification")
		assert.NotContains(t, raw, "reset")
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		f := newFixture(t, false)
		registerUser(t, f, "dora", "dora@example.com")

		rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users", map[string]any{
			"fullname": "Outra Dora",
			"username": "dora2",
			"email":    "dora@example.com",
			"password": "hunter22",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, identity.MsgEmailTaken, decodeBody(t, rec)["message"])
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		f := newFixture(t, false)

		rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users", []byte("{not json"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Corpo da requisição inválido.", decodeBody(t, rec)["message"])
	})

	t.Run("rejects a malformed avatar id", func(t *testing.T) {
		f := newFixture(t, false)

		rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users", map[string]any{
			"fullname":  "Dora Exploradora",
			"username":  "dora",
			"email":     "dora@example.com",
			"password":  "hunter22",
			"avatar_id": "not-a-ulid",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, identity.MsgInvalidAttachment, decodeBody(t, rec)["message"])
	})
}

func TestHandleGetUser(t *testing.T) {
	f := newFixture(t, false)
	registerUser(t, f, "dora", "dora@example.com")

	t.Run("returns the public view", func(t *testing.T) {
		rec := doJSON(t, f.server.Routes(), http.MethodGet, "/users/dora", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dora", decodeBody(t, rec)["username"])
	})

	t.Run("unknown username is a 404", func(t *testing.T) {
		rec := doJSON(t, f.server.Routes(), http.MethodGet, "/users/botas", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, identity.MsgUserNotFound, decodeBody(t, rec)["message"])
	})
}

func TestHandleVerify(t *testing.T) {
	f := newFixture(t, false)
	user := registerUser(t, f, "dora", "dora@example.com")
	require.NotNil(t, user.VerificationCode)
	code := *user.VerificationCode

	rec := doJSON(t, f.server.Routes(), http.MethodGet, "/users/verification/"+code, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["verified"])

	// The code is single use.
	rec = doJSON(t, f.server.Routes(), http.MethodGet, "/users/verification/"+code, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, identity.MsgUnknownVerifyCode, decodeBody(t, rec)["message"])
}

func TestHandleRequestReset(t *testing.T) {
	f := newFixture(t, false)
	registerUser(t, f, "dora", "dora@example.com")

	wantMessage := "Um e-mail foi enviado a você com instruções para redefinir sua senha."

	rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users/password/reset", map[string]any{
		"email": "dora@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wantMessage, decodeBody(t, rec)["message"])

	// Unknown addresses get the same answer so the endpoint does not
	// reveal which accounts exist.
	rec = doJSON(t, f.server.Routes(), http.MethodPost, "/users/password/reset", map[string]any{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wantMessage, decodeBody(t, rec)["message"])
}

func TestHandleResetPassword(t *testing.T) {
	t.Run("redefines the password", func(t *testing.T) {
		f := newFixture(t, false)
		registerUser(t, f, "dora", "dora@example.com")

		rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users/password/reset", map[string]any{
			"email": "dora@example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		user, err := f.users.GetByEmail(context.Background(), "dora@example.com")
		require.NoError(t, err)
		require.NotNil(t, user.ResetCode)

		rec = doJSON(t, f.server.Routes(), http.MethodPut, "/users/password/reset", map[string]any{
			"code":             *user.ResetCode,
			"password":         "novasenha",
			"password_confirm": "novasenha",
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
		assert.Equal(t,
			"Sua senha foi redefinida, faça o login com a nova senha e tenha um bom dia.",
			decodeBody(t, rec)["message"])

		user, err = f.users.GetByEmail(context.Background(), "dora@example.com")
		require.NoError(t, err)
		require.NotNil(t, user.PasswordHash)
		assert.Equal(t, "hashed:novasenha", *user.PasswordHash)
		assert.Nil(t, user.ResetCode)
	})

	t.Run("rejects mismatched confirmation", func(t *testing.T) {
		f := newFixture(t, false)
		registerUser(t, f, "dora", "dora@example.com")

		rec := doJSON(t, f.server.Routes(), http.MethodPost, "/users/password/reset", map[string]any{
			"email": "dora@example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		user, err := f.users.GetByEmail(context.Background(), "dora@example.com")
		require.NoError(t, err)
		require.NotNil(t, user.ResetCode)

		rec = doJSON(t, f.server.Routes(), http.MethodPut, "/users/password/reset", map[string]any{
			"code":             *user.ResetCode,
			"password":         "novasenha",
			"password_confirm": "outrasenha",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, identity.MsgPasswordMismatch, decodeBody(t, rec)["message"])
	})
}

func TestHandleThirdParty(t *testing.T) {
	f := newFixture(t, false)

	rec := doJSON(t, f.server.Routes(), http.MethodPost, "/auth/third-party", map[string]any{
		"name":  "Dora Exploradora",
		"email": "dora@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var result identity.TokenResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Token)
	assert.Equal(t, "dora@example.com", result.Payload.User.Email)

	claims, err := f.issuer.Parse(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Payload.User.ID, claims.Subject)
}

func multipartUpload(t *testing.T, filename string, body []byte) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return writer.FormDataContentType(), &buf
}

func TestFileEndpoints(t *testing.T) {
	f := newFixture(t, true)
	user := registerUser(t, f, "dora", "dora@example.com")
	token := f.token(t, user)

	t.Run("rejects requests without a token", func(t *testing.T) {
		contentType, body := multipartUpload(t, "mapa.png", []byte("png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		f.server.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Token de autenticação ausente.", decodeBody(t, rec)["message"])
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		contentType, body := multipartUpload(t, "mapa.png", []byte("png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		f.server.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Token de autenticação inválido.", decodeBody(t, rec)["message"])
	})

	var fileID string
	t.Run("uploads a file", func(t *testing.T) {
		contentType, body := multipartUpload(t, "mapa.png", []byte("png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.server.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
		view := decodeBody(t, rec)
		assert.Equal(t, "mapa.png", view["name"])
		location, _ := view["location"].(string)
		assert.True(t, strings.HasPrefix(location, "https://cdn.test/uploads/"), "location %q", location)

		fileID, _ = view["id"].(string)
		require.NotEmpty(t, fileID)
	})

	t.Run("removes an owned file", func(t *testing.T) {
		require.NotEmpty(t, fileID, "upload subtest must run first")

		req := httptest.NewRequest(http.MethodDelete, "/files/"+fileID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.server.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("rejects a malformed file id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/files/not-a-ulid", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.server.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, identity.MsgInvalidAttachment, decodeBody(t, rec)["message"])
	})
}

func TestFileEndpointsDisabled(t *testing.T) {
	f := newFixture(t, false)

	contentType, body := multipartUpload(t, "mapa.png", []byte("png bytes"))
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
