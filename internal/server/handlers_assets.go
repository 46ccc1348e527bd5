package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

func badParam(name, value string) error {
	return fmt.Errorf("%w: invalid %s %q", errBadRequest, name, value)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, s.catalog.Items())
}

// handleUpload stores a multipart "file" field and answers with the blob
// reference to load it by.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes()+1<<20)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeErrorMessage(w, r, http.StatusRequestEntityTooLarge, CodeTooLarge, "file too large")
			return
		}
		writeError(w, r, fmt.Errorf("%w: file: %v", errBadRequest, err), s.logger)
		return
	}
	defer file.Close()

	ref, err := s.uploads.Save(file)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	s.logger.Info("model uploaded",
		zap.String("user_id", claims.UserID),
		zap.String("file", hdr.Filename),
		zap.String("ref", ref))
	writeSuccess(w, r, http.StatusCreated, map[string]string{"url": ref, "name": hdr.Filename})
}

type saveLookRequest struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

func (s *Server) handleListLooks(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, s.looks.List(r.URL.Query().Get("owner")))
}

func (s *Server) handleGetLook(w http.ResponseWriter, r *http.Request) {
	l, err := s.looks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, l)
}

// handleSaveLook exports the merged object of a room as the caller's look.
func (s *Server) handleSaveLook(w http.ResponseWriter, r *http.Request) {
	var req saveLookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	rm, err := s.rooms.Get(req.Room)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	l, err := rm.ExportLook(s.looks, req.Name, claims.UserID)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusCreated, l)
}

func (s *Server) handleDeleteLook(w http.ResponseWriter, r *http.Request) {
	l, err := s.looks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	if l.Owner != claims.UserID {
		writeErrorMessage(w, r, http.StatusForbidden, CodeForbidden, "look belongs to another user")
		return
	}
	if err := s.looks.Delete(l.ID); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, nil)
}
