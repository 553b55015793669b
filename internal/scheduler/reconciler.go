// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/metrics"
	"github.com/lumapost/lumapost/internal/models"
)

// CatchupRunner executes a missed post through the guarded pipeline path.
type CatchupRunner interface {
	RunCatchup(ctx context.Context, cfg *models.LocationAutomationConfig) (models.RunOutcome, error)
}

// ReconcilerConfig tunes the missed-run sweep.
type ReconcilerConfig struct {
	// SweepInterval is how often the reconciler scans, coarser than the
	// review polling interval.
	SweepInterval time.Duration

	// GraceWindow keeps the reconciler from racing a cadence job that is
	// about to fire on its own: a run is only missed once it is due by
	// more than this window.
	GraceWindow time.Duration
}

// Reconciler detects and recovers posts whose scheduled fire was dropped
// because the process was not running at the scheduled moment. Timers are
// purely in-memory and vanish on restart; this sweep is the only
// self-healing path for that failure mode.
//
// A failed catch-up is not retried immediately. The next sweep
// re-evaluates and retries only if still missed, giving natural backoff
// bounded by the sweep interval.
type Reconciler struct {
	settings SettingsStore
	runner   CatchupRunner
	config   ReconcilerConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReconciler creates the missed-run reconciler.
func NewReconciler(settings SettingsStore, runner CatchupRunner, config ReconcilerConfig, logger *zerolog.Logger) *Reconciler {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}
	if config.GraceWindow <= 0 {
		config.GraceWindow = 90 * time.Second
	}
	return &Reconciler{
		settings: settings,
		runner:   runner,
		config:   config,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (r *Reconciler) SetNow(now func() time.Time) {
	r.now = now
}

// Serve runs the sweep loop until the context is cancelled. It satisfies
// suture.Service for supervision.
func (r *Reconciler) Serve(ctx context.Context) error {
	r.logger.Info().
		Dur("sweep_interval", r.config.SweepInterval).
		Dur("grace_window", r.config.GraceWindow).
		Msg("Starting missed-run reconciler")

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	// Sweep immediately on start: the window right after a restart is
	// exactly when missed runs exist.
	r.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep scans every posting-enabled location and fires one catch-up for
// each location whose most recent scheduled occurrence was missed.
func (r *Reconciler) Sweep(ctx context.Context) {
	started := r.now()
	metrics.ReconcilerSweeps.Inc()
	defer func() {
		metrics.ReconcilerSweepDuration.Observe(time.Since(started).Seconds())
	}()

	configs, err := r.settings.GetAllEnabled(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to load locations for sweep")
		return
	}

	caught := 0
	for i := range configs {
		cfg := configs[i]
		if !cfg.PostingEnabled {
			continue
		}
		if !r.missed(&cfg) {
			continue
		}

		outcome, err := r.runner.RunCatchup(ctx, &cfg)
		if errors.Is(err, ErrAlreadyRunning) {
			// The cadence job or a manual trigger got there first.
			continue
		}
		if err != nil {
			r.logger.Error().Err(err).Str("location_id", cfg.LocationID).Msg("Catch-up run failed to start")
			continue
		}

		metrics.ReconcilerCatchups.Inc()
		caught++
		r.logger.Info().
			Str("location_id", cfg.LocationID).
			Str("status", string(outcome.Status)).
			Msg("Missed post caught up")
	}

	if caught > 0 {
		r.logger.Info().Int("catchups", caught).Msg("Reconciler sweep complete")
	} else {
		r.logger.Debug().Int("locations", len(configs)).Msg("Reconciler sweep complete; nothing missed")
	}
}

// missed reports whether the location's most recent scheduled occurrence
// should have fired but did not: it is strictly after the last run and
// older than the grace window.
func (r *Reconciler) missed(cfg *models.LocationAutomationConfig) bool {
	now := r.now()
	due, ok := mostRecentDue(cfg, now)
	if !ok {
		return false
	}
	if cfg.LastRunAt != nil && !due.After(*cfg.LastRunAt) {
		return false
	}
	return now.Sub(due) > r.config.GraceWindow
}
