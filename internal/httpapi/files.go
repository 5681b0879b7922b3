// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package httpapi

import (
	"io"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/memoteca/identity/internal/files"
	"github.com/memoteca/identity/internal/identity"
)

type fileView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

func newFileView(f *files.File) fileView {
	return fileView{ID: f.ID.String(), Name: f.Name, Location: f.Location}
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	part, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Arquivo ausente na requisição."})
		return
	}
	defer part.Close() //nolint:errcheck // read-side close

	body, err := io.ReadAll(io.LimitReader(part, files.MaxExternalFetchBytes+1))
	if err != nil {
		s.writeError(w, identity.NewDependencyError(identity.MsgInternal, err))
		return
	}
	if int64(len(body)) > files.MaxExternalFetchBytes {
		s.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Arquivo excede o tamanho máximo."})
		return
	}

	file, err := s.files.Create(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newFileView(file))
}

type externalFileRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleExternalFile(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	var req externalFileRequest
	if !s.decode(w, r, &req) {
		return
	}

	file, err := s.files.CreateFromURL(r.Context(), userID, req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newFileView(file))
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, messageResponse{Message: identity.MsgInvalidAttachment})
		return
	}

	if err := s.files.Remove(r.Context(), userID, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
