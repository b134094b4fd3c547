// Package api provides the HTTP API server for the mediabox sidecar.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pocketllm/mediabox/internal/service"
)

// NormalizeRequest represents the JSON request body for normalization.
type NormalizeRequest struct {
	Reference string `json:"reference"`
	MaxSize   int    `json:"max_size"`
}

// HealthResponse represents the response for the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	IndexStatus string `json:"index_status"`
}

// DeleteResponse represents the response for media delete operations.
type DeleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, indexStatus := "healthy", "connected"
	if err := s.service.Index().Ping(r.Context()); err != nil {
		status, indexStatus = "degraded", "disconnected"
		slog.Warn("Index health check failed", "error", err)
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      status,
		Version:     s.version,
		IndexStatus: indexStatus,
	})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request content")
		return
	}
	if req.Reference == "" {
		respondError(w, http.StatusBadRequest, "reference is required")
		return
	}
	if req.MaxSize < 0 {
		respondError(w, http.StatusBadRequest, "max_size must not be negative")
		return
	}

	entry, err := s.service.Media.Normalize(r.Context(), &service.NormalizeParams{
		Reference: req.Reference,
		MaxSize:   req.MaxSize,
	})
	if err != nil {
		slog.Error("Normalization failed", "reference", req.Reference, "error", err)
		respondError(w, errorCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.Media.Get(r.Context(), mediaID(r))
	if err != nil {
		respondError(w, errorCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetMediaFile(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.Media.Get(r.Context(), mediaID(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		respondError(w, errorCode(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/bmp")
	http.ServeFile(w, r, entry.Path)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := mediaID(r)
	if err := s.service.Media.Delete(r.Context(), id); err != nil {
		respondError(w, errorCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, DeleteResponse{
		Message: "Media deleted",
		ID:      id,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Media.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to retrieve cache statistics", "error", err)
		respondError(w, errorCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Eviction.Start(); err != nil {
		slog.Error("Failed to start eviction", "error", err)
		respondError(w, errorCode(err), err.Error())
		return
	}

	slog.Info("Eviction started")
	respondJSON(w, http.StatusAccepted, AsyncStartResponse{
		Message: "Eviction started in background",
		Check:   "/api/cache/evict/status",
	})
}

func (s *Server) handleEvictStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Eviction.Status())
}
