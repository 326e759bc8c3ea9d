// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leseb/quizsearch/pkg/core/services"
	"github.com/leseb/quizsearch/pkg/quiz"
)

// maxBatchSize bounds the quiz IDs accepted by one batch request.
const maxBatchSize = 100

// EmbeddingResponse describes a stored embedding without its vector.
type EmbeddingResponse struct {
	QuizID      string    `json:"quiz_id"`
	Dimensions  int       `json:"dimensions"`
	LastUpdated time.Time `json:"last_updated"`
}

// BatchRequest is the body of POST /v1/embeddings/batch.
type BatchRequest struct {
	QuizIDs []string `json:"quiz_ids"`
}

// BatchResponse reports per-quiz outcomes of a batch.
type BatchResponse struct {
	Results   []services.BatchResult `json:"results"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
}

// handleUpsertEmbedding handles PUT /v1/quizzes/{id}/embedding
func (h *Handler) handleUpsertEmbedding(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")
	if quizID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Quiz ID is required")
		return
	}

	q, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if err != nil {
		h.logger.Error("Failed to load quiz", "error", err, "quiz_id", quizID)
		h.writeServiceError(w, err)
		return
	}

	e, err := h.embeddings.Upsert(r.Context(), q)
	if err != nil {
		h.logger.Error("Failed to embed quiz", "error", err, "quiz_id", quizID)
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("Quiz embedding updated", "quiz_id", quizID)
	h.writeJSON(w, http.StatusOK, EmbeddingResponse{
		QuizID:      e.QuizID,
		Dimensions:  len(e.Vector),
		LastUpdated: e.LastUpdated,
	})
}

// handleGetEmbeddingStatus handles GET /v1/quizzes/{id}/embedding
func (h *Handler) handleGetEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")
	if quizID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Quiz ID is required")
		return
	}

	q, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if err != nil {
		h.logger.Error("Failed to load quiz", "error", err, "quiz_id", quizID)
		h.writeServiceError(w, err)
		return
	}

	st, err := h.embeddings.Status(r.Context(), q)
	if err != nil {
		h.logger.Error("Failed to read embedding status", "error", err, "quiz_id", quizID)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, st)
}

// handleDeleteEmbedding handles DELETE /v1/quizzes/{id}/embedding
func (h *Handler) handleDeleteEmbedding(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")
	if quizID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Quiz ID is required")
		return
	}

	if err := h.embeddings.Delete(r.Context(), quizID); err != nil {
		h.logger.Error("Failed to delete embedding", "error", err, "quiz_id", quizID)
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("Quiz embedding deleted", "quiz_id", quizID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"quiz_id": quizID,
		"deleted": true,
	})
}

// handleBatchEmbeddings handles POST /v1/embeddings/batch
func (h *Handler) handleBatchEmbeddings(w http.ResponseWriter, r *http.Request) {
	// Parse request body
	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Error("Failed to parse batch request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if len(req.QuizIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "quiz_ids must not be empty")
		return
	}
	if len(req.QuizIDs) > maxBatchSize {
		h.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("at most %d quiz_ids per batch", maxBatchSize))
		return
	}

	found, err := h.quizzes.FindQuizzes(r.Context(), req.QuizIDs, quiz.Filter{})
	if err != nil {
		h.logger.Error("Failed to load quizzes", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "service_unavailable", "quiz store unavailable")
		return
	}
	byID := make(map[string]*quiz.Quiz, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}

	var batch []*quiz.Quiz
	for _, id := range req.QuizIDs {
		if q, ok := byID[id]; ok {
			batch = append(batch, q)
			delete(byID, id)
		}
	}
	embedded := make(map[string]services.BatchResult, len(batch))
	for _, res := range h.embeddings.BatchUpsert(r.Context(), batch) {
		embedded[res.QuizID] = res
	}

	// Report in request order, including ids that do not exist.
	resp := BatchResponse{Results: make([]services.BatchResult, 0, len(req.QuizIDs))}
	for _, id := range req.QuizIDs {
		res, ok := embedded[id]
		if !ok {
			res = services.BatchResult{QuizID: id, Error: quiz.ErrNotFound.Error()}
		}
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
		resp.Results = append(resp.Results, res)
	}

	h.logger.Info("Batch embedding complete", "succeeded", resp.Succeeded, "failed", resp.Failed)
	h.writeJSON(w, http.StatusOK, resp)
}
