// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/memoteca/identity/internal/identity"
)

type registerRequest struct {
	Fullname string `json:"fullname"`
	Age      *int   `json:"age,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	AvatarID string `json:"avatar_id,omitempty"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	in := identity.RegisterInput{
		Fullname: req.Fullname,
		Age:      req.Age,
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if req.AvatarID != "" {
		id, err := ulid.Parse(req.AvatarID)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, messageResponse{Message: identity.MsgInvalidAttachment})
			return
		}
		in.AttachmentID = &id
	}

	user, err := s.registrations.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newUserView(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	user, err := s.users.GetByUsername(r.Context(), username)
	if errors.Is(err, identity.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, messageResponse{Message: identity.MsgUserNotFound})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := s.verifications.Verify(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newUserView(user))
}

type requestResetRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.resets.RequestReset(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: "Um e-mail foi enviado a você com instruções para redefinir sua senha.",
	})
}

type resetPasswordRequest struct {
	Code            string `json:"code"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.resets.ResetPassword(r.Context(), req.Code, req.Password, req.PasswordConfirm); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: "Sua senha foi redefinida, faça o login com a nova senha e tenha um bom dia.",
	})
}

type thirdPartyRequest struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Picture *string `json:"picture,omitempty"`
}

func (s *Server) handleThirdParty(w http.ResponseWriter, r *http.Request) {
	var req thirdPartyRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.federation.Authenticate(r.Context(), identity.Assertion{
		Name:    req.Name,
		Email:   req.Email,
		Picture: req.Picture,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
