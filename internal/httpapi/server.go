// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package httpapi exposes the identity services over a thin JSON API.
// Handlers translate requests into service calls and classified errors into
// status codes; no business rules live here.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memoteca/identity/internal/files"
	"github.com/memoteca/identity/internal/identity"
)

// Server holds the wired services behind the JSON API.
type Server struct {
	registrations *identity.RegistrationService
	verifications *identity.VerificationService
	resets        *identity.PasswordResetService
	federation    *identity.FederationService
	issuer        *identity.TokenIssuer
	users         identity.UserRepository
	files         *files.Service
	logger        *slog.Logger
}

// NewServer creates the API server. fileSvc may be nil, which disables the
// file endpoints.
func NewServer(
	registrations *identity.RegistrationService,
	verifications *identity.VerificationService,
	resets *identity.PasswordResetService,
	federation *identity.FederationService,
	issuer *identity.TokenIssuer,
	users identity.UserRepository,
	fileSvc *files.Service,
	logger *slog.Logger,
) (*Server, error) {
	if registrations == nil {
		return nil, oops.Errorf("registration service is required")
	}
	if verifications == nil {
		return nil, oops.Errorf("verification service is required")
	}
	if resets == nil {
		return nil, oops.Errorf("password reset service is required")
	}
	if federation == nil {
		return nil, oops.Errorf("federation service is required")
	}
	if issuer == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registrations: registrations,
		verifications: verifications,
		resets:        resets,
		federation:    federation,
		issuer:        issuer,
		users:         users,
		files:         fileSvc,
		logger:        logger,
	}, nil
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", s.handleRegister)
	mux.HandleFunc("GET /users/{username}", s.handleGetUser)
	mux.HandleFunc("GET /users/verification/{code}", s.handleVerify)
	mux.HandleFunc("POST /users/password/reset", s.handleRequestReset)
	mux.HandleFunc("PUT /users/password/reset", s.handleResetPassword)
	mux.HandleFunc("POST /auth/third-party", s.handleThirdParty)

	if s.files != nil {
		mux.HandleFunc("POST /files", s.requireAuth(s.handleUploadFile))
		mux.HandleFunc("POST /files/external", s.requireAuth(s.handleExternalFile))
		mux.HandleFunc("DELETE /files/{id}", s.requireAuth(s.handleRemoveFile))
	}

	return mux
}

// userView is the public projection of a user. Password, verification and
// reset fields never cross the API boundary.
type userView struct {
	ID        string  `json:"id"`
	Fullname  string  `json:"fullname"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Age       *int    `json:"age,omitempty"`
	About     string  `json:"about"`
	AvatarID  *string `json:"avatar_id,omitempty"`
	Verified  bool    `json:"verified"`
	CreatedAt string  `json:"created_at"`
}

func newUserView(u *identity.User) userView {
	v := userView{
		ID:        u.ID.String(),
		Fullname:  u.Fullname,
		Username:  u.Username,
		Email:     u.Email,
		Age:       u.Age,
		About:     u.About,
		Verified:  u.Verified(),
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if u.AvatarID != nil {
		id := u.AvatarID.String()
		v.AvatarID = &id
	}
	return v
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

// writeError maps a classified error onto the wire. Unclassified errors are
// treated as dependency failures and never leak internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if classified, ok := identity.AsError(err); ok {
		if classified.Kind == identity.KindDependency {
			s.logger.Error("request failed", "error", err)
		}
		s.writeJSON(w, classified.Status, messageResponse{Message: classified.Message})
		return
	}
	s.logger.Error("unclassified request failure", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: identity.MsgInternal})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Corpo da requisição inválido."})
		return false
	}
	return true
}

// requireAuth wraps a handler with bearer token authentication. The
// authenticated user id is passed through to the handler.
func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, ulid.ULID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Token de autenticação ausente."})
			return
		}

		claims, err := s.issuer.Parse(token)
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Token de autenticação inválido."})
			return
		}

		userID, err := ulid.Parse(claims.User.ID)
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Token de autenticação inválido."})
			return
		}

		next(w, r, userID)
	}
}
