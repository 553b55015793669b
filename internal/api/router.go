// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumapost/lumapost/internal/auth"
)

// Router assembles the HTTP surface.
type Router struct {
	handlers   *Handlers
	middleware *Middleware
	jwt        *auth.JWTManager
}

// NewRouter creates the router from its parts.
func NewRouter(handlers *Handlers, middleware *Middleware, jwt *auth.JWTManager) *Router {
	return &Router{
		handlers:   handlers,
		middleware: middleware,
		jwt:        jwt,
	}
}

// Setup builds the chi route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware. CORS must be global to answer OPTIONS preflights.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.middleware.CORS())

	// Health endpoints are unauthenticated for orchestrator probes.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", rt.handlers.Health)
		r.Get("/live", rt.handlers.HealthLive)
		r.Get("/ready", rt.handlers.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(rt.middleware.RateLimitLogin()).Post("/login", rt.handlers.Login)
	})

	// Everything else requires a valid session token.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())
		r.Use(PrometheusMetrics)
		r.Use(rt.jwt.Middleware)

		r.Get("/locations", rt.handlers.ListLocations)
		r.Get("/ws", rt.handlers.WebSocket)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/credential", rt.handlers.CredentialStatus)
			r.Post("/credential", rt.handlers.SaveCredential)
			r.Delete("/credential", rt.handlers.DeleteCredential)

			r.Route("/locations/{locID}", func(r chi.Router) {
				r.Get("/settings", rt.handlers.GetSettings)
				r.Put("/settings", rt.handlers.UpdateSettings)
				r.Get("/status", rt.handlers.GetStatus)
				r.Get("/history", rt.handlers.History)
				r.Post("/post", rt.handlers.TriggerPost)
				r.Post("/review-check", rt.handlers.TriggerReviewCheck)
				r.Post("/stop", rt.handlers.Stop)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
