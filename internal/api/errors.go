// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lumapost/lumapost/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
