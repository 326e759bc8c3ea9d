// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/leseb/quizsearch/pkg/snapshot"
)

// ListSnapshotsResponse is the body of GET /v1/snapshots.
type ListSnapshotsResponse struct {
	Object string          `json:"object"`
	Data   []snapshot.Info `json:"data"`
}

// handleExportSnapshot handles POST /v1/snapshots
func (h *Handler) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := h.snapshots.Export(r.Context())
	if err != nil {
		h.logger.Error("Failed to export snapshot", "error", err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, res)
}

// handleListSnapshots handles GET /v1/snapshots
func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.snapshots.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list snapshots", "error", err)
		h.writeServiceError(w, err)
		return
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}

	h.writeJSON(w, http.StatusOK, ListSnapshotsResponse{Object: "list", Data: infos})
}

// handleRestoreSnapshot handles POST /v1/snapshots/{name}/restore
func (h *Handler) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Snapshot name is required")
		return
	}

	res, err := h.snapshots.Restore(r.Context(), name)
	if err != nil {
		h.logger.Error("Failed to restore snapshot", "error", err, "name", name)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}
