// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
)

// handleSearch handles GET /v1/search
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	query := r.URL.Query().Get("q")

	resp, err := h.search.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("Search failed", "error", err)
		h.writeServiceError(w, err)
		return
	}

	h.logger.Debug("Search served", "tier", resp.Tier, "results", len(resp.Results))
	h.writeJSON(w, http.StatusOK, resp)
}

// handleFindSimilar handles GET /v1/quizzes/{id}/similar
func (h *Handler) handleFindSimilar(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")
	if quizID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Quiz ID is required")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.search.FindSimilar(r.Context(), quizID, limit)
	if err != nil {
		h.logger.Error("Similar search failed", "error", err, "quiz_id", quizID)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}
