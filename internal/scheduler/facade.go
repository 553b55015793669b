// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/models"
)

// Status is the live automation state for one location, returned by
// GetStatus. Next-run estimates are derived from the cadence math, not
// from timer internals.
type Status struct {
	LocationID        string     `json:"location_id"`
	PostingActive     bool       `json:"posting_active"`
	PollingActive     bool       `json:"polling_active"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	NextPostAt        *time.Time `json:"next_post_at,omitempty"`
	NextReviewCheckAt *time.Time `json:"next_review_check_at,omitempty"`
}

// Facade is the automation core's only public entry point. Route
// handlers enable/disable automation, trigger manual runs, and query
// status through it; nothing else reaches the Registry or Guard directly.
type Facade struct {
	settings  SettingsStore
	registry  *Registry
	guard     *Guard
	pipelines *Pipelines
	logger    zerolog.Logger
	now       func() time.Time

	// lastRuns is the in-memory snapshot the cadence schedules consult.
	// It mirrors the store's last_run_at and is refreshed on every
	// schedule build and successful post. pollAnchors records when each
	// location's polling was armed or last fired, so next-check estimates
	// derive from the configured interval rather than timer internals.
	mu          sync.Mutex
	lastRuns    map[string]*time.Time
	pollAnchors map[string]time.Time
}

// NewFacade wires the automation core together.
func NewFacade(settings SettingsStore, registry *Registry, guard *Guard, pipelines *Pipelines, logger *zerolog.Logger) *Facade {
	return &Facade{
		settings:    settings,
		registry:    registry,
		guard:       guard,
		pipelines:   pipelines,
		logger:      logger.With().Str("component", "scheduler-facade").Logger(),
		now:         time.Now,
		lastRuns:    make(map[string]*time.Time),
		pollAnchors: make(map[string]time.Time),
	}
}

// SetNow overrides the clock, for tests.
func (f *Facade) SetNow(now func() time.Time) {
	f.now = now
	f.pipelines.SetNow(now)
}

// Initialize loads every location with automation enabled and builds its
// jobs. Idempotent: all existing jobs are cleared first, so repeated
// calls never accumulate duplicate timers.
//
// A failure to schedule one location is collected and does not abort the
// remaining locations; the joined error reports every failure.
func (f *Facade) Initialize(ctx context.Context) error {
	f.registry.Clear()
	f.mu.Lock()
	f.pollAnchors = make(map[string]time.Time)
	f.mu.Unlock()

	configs, err := f.settings.GetAllEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled locations: %w", err)
	}

	var errs []error
	scheduled := 0
	for i := range configs {
		cfg := configs[i]
		if err := f.scheduleLocation(&cfg); err != nil {
			f.logger.Error().Err(err).Str("location_id", cfg.LocationID).Msg("Failed to schedule location")
			errs = append(errs, fmt.Errorf("location %s: %w", cfg.LocationID, err))
			continue
		}
		scheduled++
	}

	f.logger.Info().
		Int("scheduled", scheduled).
		Int("failed", len(errs)).
		Msg("Scheduler initialized")
	return errors.Join(errs...)
}

// scheduleLocation arms the jobs a config calls for.
func (f *Facade) scheduleLocation(cfg *models.LocationAutomationConfig) error {
	f.setLastRun(cfg.LocationID, cfg.LastRunAt)

	if cfg.PostingEnabled {
		locationID := cfg.LocationID
		err := f.registry.SchedulePosting(cfg, f.lastRunFn(locationID), func() {
			f.firePost(locationID)
		})
		if err != nil {
			return err
		}
	}
	if cfg.ReplyEnabled {
		locationID := cfg.LocationID
		interval := time.Duration(cfg.ReviewPollIntervalSeconds) * time.Second
		f.registry.SchedulePolling(locationID, interval, func() {
			f.firePoll(locationID)
		})
		f.setPollAnchor(locationID, f.now())
	}
	return nil
}

// firePost is the cadence job callback. It re-reads the config at fire
// time so a disable that raced the timer is honored, then runs the post
// pipeline. A guard denial is a silent skip for automatic triggers.
func (f *Facade) firePost(locationID string) {
	ctx := context.Background()
	cfg, err := f.settings.Get(ctx, locationID)
	if err != nil {
		f.logger.Error().Err(err).Str("location_id", locationID).Msg("Failed to load config at fire time")
		return
	}
	if cfg == nil || !cfg.PostingEnabled {
		return
	}

	outcome, err := f.pipelines.RunPost(ctx, cfg, models.TriggerScheduled)
	if errors.Is(err, ErrAlreadyRunning) {
		f.logger.Debug().Str("location_id", locationID).Msg("Scheduled post skipped; run already in flight")
		return
	}
	if outcome.Status == models.RunSuccess {
		f.setLastRun(locationID, &outcome.Timestamp)
	}
}

// firePoll is the polling job callback.
func (f *Facade) firePoll(locationID string) {
	f.setPollAnchor(locationID, f.now())

	ctx := context.Background()
	cfg, err := f.settings.Get(ctx, locationID)
	if err != nil {
		f.logger.Error().Err(err).Str("location_id", locationID).Msg("Failed to load config at fire time")
		return
	}
	if cfg == nil || !cfg.ReplyEnabled {
		return
	}

	if _, err := f.pipelines.RunReviewCheck(ctx, cfg, models.TriggerScheduled); err != nil {
		f.logger.Error().Err(err).Str("location_id", locationID).Msg("Review check failed")
	}
}

// UpdateSettings persists the new config, then reconciles live jobs
// against it. Only jobs whose parameters actually changed are cancelled
// and recreated; editing unrelated fields (metadata, keywords) must not
// reset a cadence timer's next-fire time.
func (f *Facade) UpdateSettings(ctx context.Context, locationID string, newCfg *models.LocationAutomationConfig) (*models.LocationAutomationConfig, error) {
	newCfg.LocationID = locationID
	newCfg.Normalize()
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	old, err := f.settings.Get(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing config: %w", err)
	}
	if old != nil {
		// Last-run is owned by the pipelines, not by settings updates.
		newCfg.LastRunAt = old.LastRunAt
		newCfg.CreatedAt = old.CreatedAt
	}

	persisted, err := f.settings.Upsert(ctx, newCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist config: %w", err)
	}

	f.setLastRun(locationID, persisted.LastRunAt)

	if postingChanged(old, persisted) {
		if persisted.PostingEnabled {
			err := f.registry.SchedulePosting(persisted, f.lastRunFn(locationID), func() {
				f.firePost(locationID)
			})
			if err != nil {
				return nil, err
			}
		} else {
			f.registry.Cancel(locationID, JobPosting)
		}
	}

	if pollingChanged(old, persisted) {
		if persisted.ReplyEnabled {
			interval := time.Duration(persisted.ReviewPollIntervalSeconds) * time.Second
			f.registry.SchedulePolling(locationID, interval, func() {
				f.firePoll(locationID)
			})
			f.setPollAnchor(locationID, f.now())
		} else {
			f.registry.Cancel(locationID, JobPolling)
			f.deletePollAnchor(locationID)
		}
	}

	f.logger.Info().
		Str("location_id", locationID).
		Bool("posting_enabled", persisted.PostingEnabled).
		Bool("reply_enabled", persisted.ReplyEnabled).
		Msg("Automation settings updated")
	return persisted, nil
}

// postingChanged reports whether the cadence job's parameters differ.
func postingChanged(old, updated *models.LocationAutomationConfig) bool {
	if old == nil {
		return updated.PostingEnabled
	}
	return old.PostingEnabled != updated.PostingEnabled ||
		old.ScheduleTime != updated.ScheduleTime ||
		old.Frequency != updated.Frequency ||
		old.Timezone != updated.Timezone
}

// pollingChanged reports whether the polling job's parameters differ.
func pollingChanged(old, updated *models.LocationAutomationConfig) bool {
	if old == nil {
		return updated.ReplyEnabled
	}
	return old.ReplyEnabled != updated.ReplyEnabled ||
		old.ReviewPollIntervalSeconds != updated.ReviewPollIntervalSeconds
}

// GetStatus reports live job state and next-run estimates for a location.
func (f *Facade) GetStatus(ctx context.Context, locationID string) (*Status, error) {
	cfg, err := f.settings.Get(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}

	status := &Status{
		LocationID:    locationID,
		PostingActive: f.registry.Has(locationID, JobPosting),
		PollingActive: f.registry.Has(locationID, JobPolling),
		LastRunAt:     cfg.LastRunAt,
	}

	if status.PostingActive {
		sched, err := newCadenceSchedule(cfg.ScheduleTime, cfg.Frequency, cfg.Location(), f.lastRunFn(locationID))
		if err == nil {
			next := sched.Next(f.now())
			status.NextPostAt = &next
		}
	}
	if status.PollingActive {
		// Next check is anchor + interval: derived from the config and the
		// last observed poll, not from timer internals.
		if anchor, ok := f.pollAnchor(locationID); ok {
			next := anchor.Add(time.Duration(cfg.ReviewPollIntervalSeconds) * time.Second)
			status.NextReviewCheckAt = &next
		}
	}
	return status, nil
}

// TriggerManualPost runs the post pipeline immediately, bypassing the
// schedule but not the guard: a manual trigger while a run is in flight
// fails with ErrAlreadyRunning rather than queueing. A non-nil override
// is used for this run only and is never persisted.
func (f *Facade) TriggerManualPost(ctx context.Context, locationID string, override *models.LocationAutomationConfig) (models.RunOutcome, error) {
	cfg, err := f.manualConfig(ctx, locationID, override)
	if err != nil {
		return models.RunOutcome{}, err
	}

	outcome, err := f.pipelines.RunPost(ctx, cfg, models.TriggerManual)
	if err != nil {
		return models.RunOutcome{}, err
	}
	if outcome.Status == models.RunSuccess {
		f.setLastRun(locationID, &outcome.Timestamp)
	}
	return outcome, nil
}

// TriggerManualReviewCheck runs the review pipeline immediately. A
// non-nil override is used for this run only and is never persisted.
func (f *Facade) TriggerManualReviewCheck(ctx context.Context, locationID string, override *models.LocationAutomationConfig) ([]models.RunOutcome, error) {
	cfg, err := f.manualConfig(ctx, locationID, override)
	if err != nil {
		return nil, err
	}
	return f.pipelines.RunReviewCheck(ctx, cfg, models.TriggerManual)
}

// manualConfig resolves the config a manual trigger runs with. The
// override, when present, replaces the stored config for the run; it is
// validated but never written to the store, so a one-off post with
// different metadata leaves the schedule untouched.
func (f *Facade) manualConfig(ctx context.Context, locationID string, override *models.LocationAutomationConfig) (*models.LocationAutomationConfig, error) {
	if override != nil {
		override.LocationID = locationID
		override.Normalize()
		if err := override.Validate(); err != nil {
			return nil, err
		}
		return override, nil
	}

	cfg, err := f.settings.Get(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

// RunCatchup executes a reconciler-detected missed post through the same
// guarded path as normal firing, so a cadence job that is merely late is
// never double-executed.
func (f *Facade) RunCatchup(ctx context.Context, cfg *models.LocationAutomationConfig) (models.RunOutcome, error) {
	outcome, err := f.pipelines.RunPost(ctx, cfg, models.TriggerCatchup)
	if err != nil {
		return models.RunOutcome{}, err
	}
	if outcome.Status == models.RunSuccess {
		f.setLastRun(cfg.LocationID, &outcome.Timestamp)
	}
	return outcome, nil
}

// StopAll disables both automations for a location and cancels its jobs.
func (f *Facade) StopAll(ctx context.Context, locationID string) error {
	cfg, err := f.settings.Get(ctx, locationID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrConfigNotFound
	}

	cfg.PostingEnabled = false
	cfg.ReplyEnabled = false
	_, err = f.UpdateSettings(ctx, locationID, cfg)
	return err
}

// lastRunFn returns a closure the cadence schedule uses to read the
// freshest last-run snapshot at every next-fire computation.
func (f *Facade) lastRunFn(locationID string) func() *time.Time {
	return func() *time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.lastRuns[locationID]
	}
}

func (f *Facade) setLastRun(locationID string, at *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRuns[locationID] = at
}

func (f *Facade) setPollAnchor(locationID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollAnchors[locationID] = at
}

func (f *Facade) deletePollAnchor(locationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pollAnchors, locationID)
}

func (f *Facade) pollAnchor(locationID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.pollAnchors[locationID]
	return at, ok
}
