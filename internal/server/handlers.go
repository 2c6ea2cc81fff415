package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGenerateActions runs the planner over a submitted page snapshot and
// returns the ordered action batch. An empty batch is a valid answer: it
// means the page holds nothing the CV can fill.
func (s *Server) handleGenerateActions(w http.ResponseWriter, r *http.Request) {
	var req schemas.GenerateActionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		s.respondError(w, http.StatusBadRequest, "html must not be empty")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.respondError(w, http.StatusBadRequest, "user_id must not be empty")
		return
	}

	batch, err := s.planner.PlanActions(r.Context(), req)
	if err != nil {
		s.log.Error("Planning failed",
			zap.String("user_id", req.UserID),
			zap.String("url", req.URL),
			zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to generate actions")
		return
	}
	if batch == nil {
		batch = []schemas.FillAction{}
	}
	s.respondJSON(w, http.StatusOK, schemas.GenerateActionsResponse{Actions: batch})
}

// handleUpload accepts a multipart CV upload scoped to a tenant and indexes
// it through the ingest pipeline.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id must not be empty")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "a file upload is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	chunks, err := s.ingestor.Ingest(r.Context(), userID, header.Filename, content)
	if err != nil {
		s.log.Error("Ingest failed",
			zap.String("user_id", userID),
			zap.String("file", header.Filename),
			zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to index document: %v", err))
		return
	}

	s.log.Info("CV uploaded",
		zap.String("user_id", userID),
		zap.String("file", header.Filename),
		zap.Int("chunks", chunks))
	s.respondJSON(w, http.StatusOK, schemas.UploadResponse{
		Message: "CV processed and stored successfully",
		Chunks:  chunks,
	})
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, schemas.ErrorResponse{Error: message})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
	}
}
