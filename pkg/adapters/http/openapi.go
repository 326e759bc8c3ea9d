// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"
)

// renderOpenAPI decodes a YAML OpenAPI document and re-encodes it as JSON.
func renderOpenAPI(src []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi yaml: %w", err)
	}
	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("encode openapi json: %w", err)
	}
	return out, nil
}

// stringKeys rewrites decoded YAML maps so encoding/json can marshal them.
// yaml.v3 yields map[any]any for documents with non-string keys.
func stringKeys(node any) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			n[k] = stringKeys(v)
		}
		return n
	case map[any]any:
		m := make(map[string]any, len(n))
		for k, v := range n {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case []any:
		for i, v := range n {
			n[i] = stringKeys(v)
		}
		return n
	}
	return node
}

func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if h.openapi == nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "OpenAPI document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(h.openapi)
}
