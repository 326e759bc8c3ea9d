// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/leseb/quizsearch/docs"
	"github.com/leseb/quizsearch/pkg/core/services"
	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/observability/logging"
	"github.com/leseb/quizsearch/pkg/quiz"
	"github.com/leseb/quizsearch/pkg/search"
	"github.com/leseb/quizsearch/pkg/snapshot"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler implements the HTTP adapter
type Handler struct {
	logger     *logging.Logger
	mux        *http.ServeMux
	search     *search.Service
	embeddings *services.EmbeddingService
	quizzes    quiz.Store
	snapshots  *services.SnapshotService

	// openapi is the embedded document rendered as JSON, nil if it failed to render.
	openapi []byte
}

// New creates a new HTTP handler. snapshots may be nil, in which case the
// snapshot routes are not registered.
func New(logger *logging.Logger, searchService *search.Service, embeddings *services.EmbeddingService, quizzes quiz.Store, snapshots *services.SnapshotService) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	h := &Handler{
		logger:     logger.Component("http"),
		mux:        http.NewServeMux(),
		search:     searchService,
		embeddings: embeddings,
		quizzes:    quizzes,
		snapshots:  snapshots,
	}

	doc, err := renderOpenAPI(docs.OpenAPISpec)
	if err != nil {
		h.logger.Error("Failed to render OpenAPI document", "error", err)
	}
	h.openapi = doc

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /openapi.json", h.handleOpenAPI)

	// Search API
	h.mux.HandleFunc("GET /v1/search", h.handleSearch)
	h.mux.HandleFunc("GET /v1/quizzes/{id}/similar", h.handleFindSimilar)

	// Embedding lifecycle API
	h.mux.HandleFunc("PUT /v1/quizzes/{id}/embedding", h.handleUpsertEmbedding)
	h.mux.HandleFunc("GET /v1/quizzes/{id}/embedding", h.handleGetEmbeddingStatus)
	h.mux.HandleFunc("DELETE /v1/quizzes/{id}/embedding", h.handleDeleteEmbedding)
	h.mux.HandleFunc("POST /v1/embeddings/batch", h.handleBatchEmbeddings)

	// Snapshots API
	if snapshots != nil {
		h.mux.HandleFunc("POST /v1/snapshots", h.handleExportSnapshot)
		h.mux.HandleFunc("GET /v1/snapshots", h.handleListSnapshots)
		h.mux.HandleFunc("POST /v1/snapshots/{name}/restore", h.handleRestoreSnapshot)
	}

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"request_id", requestID)

	h.mux.ServeHTTP(w, r)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// parseLimit reads the optional limit query parameter. Zero means the
// service default.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}

// writeServiceError maps a service error onto a status code and error type.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var dm *vectorstore.DimensionMismatchError
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "quiz_not_found", err.Error())
	case errors.Is(err, snapshot.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "snapshot_not_found", err.Error())
	case errors.Is(err, snapshot.ErrInvalidName):
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, search.ErrUnavailable), errors.Is(err, vectorstore.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, embedding.ErrEmptyText):
		h.writeError(w, http.StatusUnprocessableEntity, "insufficient_content", err.Error())
	case embedding.IsProviderError(err):
		h.writeError(w, http.StatusBadGateway, "embedding_error", err.Error())
	case errors.Is(err, vectorstore.ErrRecordTooLarge):
		h.writeError(w, http.StatusUnprocessableEntity, "content_too_large", err.Error())
	case errors.As(err, &dm), errors.Is(err, vectorstore.ErrInvalidVector):
		h.writeError(w, http.StatusInternalServerError, "vector_error", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
