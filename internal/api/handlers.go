// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/lumapost/lumapost/internal/auth"
	"github.com/lumapost/lumapost/internal/logging"
	"github.com/lumapost/lumapost/internal/models"
	"github.com/lumapost/lumapost/internal/scheduler"
	"github.com/lumapost/lumapost/internal/websocket"
)

// Automation is the scheduling facade the handlers drive.
type Automation interface {
	UpdateSettings(ctx context.Context, locationID string, cfg *models.LocationAutomationConfig) (*models.LocationAutomationConfig, error)
	GetStatus(ctx context.Context, locationID string) (*scheduler.Status, error)
	TriggerManualPost(ctx context.Context, locationID string, override *models.LocationAutomationConfig) (models.RunOutcome, error)
	TriggerManualReviewCheck(ctx context.Context, locationID string, override *models.LocationAutomationConfig) ([]models.RunOutcome, error)
	StopAll(ctx context.Context, locationID string) error
}

// Storage is the read side the handlers need: settings, history, and
// a liveness probe for the readiness endpoint.
type Storage interface {
	Get(ctx context.Context, locationID string) (*models.LocationAutomationConfig, error)
	GetAll(ctx context.Context) ([]models.LocationAutomationConfig, error)
	History(ctx context.Context, locationID string, limit int) ([]models.RunOutcome, error)
	Ping(ctx context.Context) error
}

// CredentialStore accepts OAuth refresh tokens for accounts.
type CredentialStore interface {
	SaveCredential(accountID, refreshToken string) error
	DeleteCredential(accountID string) error
	HasCredential(accountID string) (bool, error)
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	automation  Automation
	storage     Storage
	credentials CredentialStore
	verifier    *auth.CredentialVerifier
	jwt         *auth.JWTManager
	hub         *websocket.Hub
	startedAt   time.Time
}

// NewHandlers wires the handler dependencies. hub may be nil when the
// dashboard socket is not served.
func NewHandlers(automation Automation, storage Storage, credentials CredentialStore,
	verifier *auth.CredentialVerifier, jwt *auth.JWTManager, hub *websocket.Hub) *Handlers {
	return &Handlers{
		automation:  automation,
		storage:     storage,
		credentials: credentials,
		verifier:    verifier,
		jwt:         jwt,
		hub:         hub,
		startedAt:   time.Now(),
	}
}

// locationID reconstructs the Business Profile resource name from the
// route parameters.
func locationID(r *http.Request) string {
	return "accounts/" + chi.URLParam(r, "accountID") + "/locations/" + chi.URLParam(r, "locID")
}

func accountID(r *http.Request) string {
	return "accounts/" + chi.URLParam(r, "accountID")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login verifies admin credentials and issues a session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.verifier.Verify(req.Username, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.jwt.GenerateToken(req.Username, "admin")
	if err != nil {
		logging.Error().Err(err).Msg("Failed to issue session token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// Health reports basic process health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// HealthLive is the liveness probe.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe; it checks database connectivity.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListLocations returns all configured locations.
func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.storage.GetAll(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list locations")
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if configs == nil {
		configs = []models.LocationAutomationConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": configs})
}

// GetSettings returns the automation config for one location.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)
	cfg, err := h.storage.Get(r.Context(), id)
	if err != nil {
		logging.Error().Err(err).Str("location_id", id).Msg("Failed to load settings")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "location not configured")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateSettings upserts the automation config for one location and
// reschedules its jobs.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)

	var cfg models.LocationAutomationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.LocationID = id
	cfg.AccountID = accountID(r)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.automation.UpdateSettings(r.Context(), id, &cfg)
	if err != nil {
		logging.Error().Err(err).Str("location_id", id).Msg("Failed to update settings")
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetStatus returns the live scheduling status for one location.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)
	status, err := h.automation.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "location not configured")
			return
		}
		logging.Error().Err(err).Str("location_id", id).Msg("Failed to load status")
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// History returns recent run outcomes for one location.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	outcomes, err := h.storage.History(r.Context(), id, limit)
	if err != nil {
		logging.Error().Err(err).Str("location_id", id).Msg("Failed to load history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if outcomes == nil {
		outcomes = []models.RunOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": outcomes})
}

// overrideConfig decodes the optional request body of a manual trigger:
// a config used for that run only, never persisted. An empty body means
// run the stored config.
func overrideConfig(w http.ResponseWriter, r *http.Request) (*models.LocationAutomationConfig, bool) {
	var cfg models.LocationAutomationConfig
	err := json.NewDecoder(r.Body).Decode(&cfg)
	if errors.Is(err, io.EOF) {
		return nil, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	cfg.LocationID = locationID(r)
	cfg.AccountID = accountID(r)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &cfg, true
}

// TriggerPost runs the posting pipeline immediately. A failed run is
// still a 200: the request was accepted and executed, and the outcome
// carries the result.
func (h *Handlers) TriggerPost(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)
	override, ok := overrideConfig(w, r)
	if !ok {
		return
	}
	outcome, err := h.automation.TriggerManualPost(r.Context(), id, override)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrConfigNotFound):
			writeError(w, http.StatusNotFound, "location not configured")
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "a run is already in progress for this location")
		default:
			logging.Error().Err(err).Str("location_id", id).Msg("Manual post failed")
			writeError(w, http.StatusInternalServerError, "failed to trigger post")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// TriggerReviewCheck runs the review polling pipeline immediately.
func (h *Handlers) TriggerReviewCheck(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)
	override, ok := overrideConfig(w, r)
	if !ok {
		return
	}
	outcomes, err := h.automation.TriggerManualReviewCheck(r.Context(), id, override)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrConfigNotFound):
			writeError(w, http.StatusNotFound, "location not configured")
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "a run is already in progress for this location")
		default:
			logging.Error().Err(err).Str("location_id", id).Msg("Manual review check failed")
			writeError(w, http.StatusInternalServerError, "failed to trigger review check")
		}
		return
	}
	if outcomes == nil {
		outcomes = []models.RunOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

// Stop disables all automation for a location and cancels its jobs.
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	id := locationID(r)
	if err := h.automation.StopAll(r.Context(), id); err != nil {
		if errors.Is(err, scheduler.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "location not configured")
			return
		}
		logging.Error().Err(err).Str("location_id", id).Msg("Failed to stop automation")
		writeError(w, http.StatusInternalServerError, "failed to stop automation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

type credentialRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SaveCredential stores the OAuth refresh token for an account.
func (h *Handlers) SaveCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	id := accountID(r)
	if err := h.credentials.SaveCredential(id, req.RefreshToken); err != nil {
		logging.Error().Err(err).Str("account_id", id).Msg("Failed to store credential")
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// DeleteCredential removes the stored credential for an account.
func (h *Handlers) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id := accountID(r)
	if err := h.credentials.DeleteCredential(id); err != nil {
		logging.Error().Err(err).Str("account_id", id).Msg("Failed to delete credential")
		writeError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CredentialStatus reports whether a credential is stored for an account.
func (h *Handlers) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	id := accountID(r)
	has, err := h.credentials.HasCredential(id)
	if err != nil {
		logging.Error().Err(err).Str("account_id", id).Msg("Failed to check credential")
		writeError(w, http.StatusInternalServerError, "failed to check credential")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_credential": has})
}

// WebSocket upgrades the connection and attaches it to the dashboard hub.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live updates not available")
		return
	}
	websocket.ServeWS(h.hub, w, r)
}
