// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lumapost/lumapost/internal/logging"
	"github.com/lumapost/lumapost/internal/scheduler"
)

// CronService runs the job registry's cron loop as a supervised service.
type CronService struct {
	registry *scheduler.Registry
}

// NewCronService wraps a registry.
func NewCronService(registry *scheduler.Registry) *CronService {
	return &CronService{registry: registry}
}

// Serve starts the cron loop and blocks until the context is canceled,
// then waits for in-flight jobs to finish.
func (s *CronService) Serve(ctx context.Context) error {
	s.registry.Start()
	<-ctx.Done()

	done := s.registry.Stop()
	select {
	case <-done.Done():
	case <-time.After(30 * time.Second):
		logging.Warn().Msg("Timed out waiting for running jobs during shutdown")
	}
	return ctx.Err()
}

// HTTPService runs an http.Server as a supervised service with graceful
// shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an http.Server.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve listens until the context is canceled, then drains connections.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown did not complete cleanly")
		}
		return ctx.Err()
	}
}
