package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/internal/storage"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("chat request", zap.String("mode", string(req.Mode)), zap.Int("length", len(req.Message)))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	broken := false
	for frag := range s.assistant.Reply(r.Context(), &req) {
		if broken {
			continue
		}
		if _, err := io.WriteString(w, frag); err != nil {
			s.logger.Debug("chat client went away", zap.Error(err))
			broken = true
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleListHelpers(w http.ResponseWriter, r *http.Request) {
	q, err := models.ParseHelperQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := s.storage.ListHelpers(r.Context(), q)
	if err != nil {
		s.logger.Error("list helpers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list helpers")
		return
	}
	s.respondJSON(w, http.StatusOK, models.NewHelperPage(q, items, total))
}

func (s *Server) handleGetHelper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	helper, err := s.storage.GetHelper(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "helper not found")
		return
	}
	if err != nil {
		s.logger.Error("get helper failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load helper")
		return
	}
	s.respondJSON(w, http.StatusOK, helper)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleKnowledgeStatus(w http.ResponseWriter, r *http.Request) {
	kc := s.config.Knowledge
	count, err := s.storage.CountChunks(r.Context(), kc.Source, kc.Title)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to count chunks")
		return
	}
	status := &models.KnowledgeStatus{
		Title:         kc.Title,
		Source:        kc.Source,
		Chunks:        count,
		LoadedVectors: s.vectors.Size(),
		Ready:         s.vectors.Ready(),
		Config:        models.NewStatusConfig(s.config),
	}
	if s.config.Storage.Driver == config.DriverSQLite {
		if n, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &n
		}
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
