// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/metrics"
	"github.com/lumapost/lumapost/internal/models"
)

// JobKind distinguishes the two timer types a location can hold.
type JobKind string

const (
	JobPosting JobKind = "posting"
	JobPolling JobKind = "reviewPolling"
)

// Registry owns the mapping locationID -> {posting job, polling job} and
// is the only component permitted to start or stop timers. Centralizing
// timer ownership here is what makes "at most one job per location per
// kind" enforceable.
//
// Handles are process-lifetime only. The registry is rebuilt from the
// settings store on every Facade.Initialize.
type Registry struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]map[JobKind]cron.EntryID
}

// NewRegistry creates a registry with its own cron runner. Start must be
// called before any job fires.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		cron:    cron.New(),
		logger:  logger.With().Str("component", "job-registry").Logger(),
		entries: make(map[string]map[JobKind]cron.EntryID),
	}
}

// Start begins the underlying cron runner.
func (r *Registry) Start() {
	r.cron.Start()
}

// Stop stops the cron runner. The returned context is done once all
// in-flight jobs have completed; already-running jobs are never
// interrupted.
func (r *Registry) Stop() context.Context {
	return r.cron.Stop()
}

// SchedulePosting arms the cadence timer for a location, replacing any
// existing posting job so timers never leak. lastRun is consulted at each
// fire-time computation.
func (r *Registry) SchedulePosting(cfg *models.LocationAutomationConfig, lastRun func() *time.Time, onFire func()) error {
	sched, err := newCadenceSchedule(cfg.ScheduleTime, cfg.Frequency, cfg.Location(), lastRun)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(cfg.LocationID, JobPosting)
	id := r.cron.Schedule(sched, cron.FuncJob(onFire))
	r.storeLocked(cfg.LocationID, JobPosting, id)

	r.logger.Debug().
		Str("location_id", cfg.LocationID).
		Str("schedule_time", cfg.ScheduleTime).
		Str("frequency", string(cfg.Frequency)).
		Msg("Posting job scheduled")
	return nil
}

// SchedulePolling arms a fixed-interval review polling timer, replacing
// any existing polling job for the location.
func (r *Registry) SchedulePolling(locationID string, interval time.Duration, onFire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(locationID, JobPolling)
	id := r.cron.Schedule(cron.Every(interval), cron.FuncJob(onFire))
	r.storeLocked(locationID, JobPolling, id)

	r.logger.Debug().
		Str("location_id", locationID).
		Dur("interval", interval).
		Msg("Polling job scheduled")
}

// Cancel stops and discards the handle for one kind. No-op if none exists.
func (r *Registry) Cancel(locationID string, kind JobKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(locationID, kind)
}

// CancelAll cancels both job kinds for a location.
func (r *Registry) CancelAll(locationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(locationID, JobPosting)
	r.cancelLocked(locationID, JobPolling)
}

// Has reports whether a live job exists for the location and kind.
func (r *Registry) Has(locationID string, kind JobKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[locationID][kind]
	return ok
}

// EntryID returns the underlying timer handle identity, used by tests and
// diffing logic to verify a job survived an unrelated settings update.
func (r *Registry) EntryID(locationID string, kind JobKind) (cron.EntryID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.entries[locationID][kind]
	return id, ok
}

// Clear cancels every job for every location.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for locationID, kinds := range r.entries {
		for kind := range kinds {
			r.cancelLocked(locationID, kind)
		}
	}
}

// Len returns the total number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, kinds := range r.entries {
		n += len(kinds)
	}
	return n
}

// cancelLocked removes one entry; caller holds r.mu.
func (r *Registry) cancelLocked(locationID string, kind JobKind) {
	kinds, ok := r.entries[locationID]
	if !ok {
		return
	}
	id, ok := kinds[kind]
	if !ok {
		return
	}
	r.cron.Remove(id)
	delete(kinds, kind)
	if len(kinds) == 0 {
		delete(r.entries, locationID)
	}
	metrics.ActiveJobs.WithLabelValues(string(kind)).Dec()
}

// storeLocked records a new entry; caller holds r.mu.
func (r *Registry) storeLocked(locationID string, kind JobKind, id cron.EntryID) {
	kinds, ok := r.entries[locationID]
	if !ok {
		kinds = make(map[JobKind]cron.EntryID, 2)
		r.entries[locationID] = kinds
	}
	kinds[kind] = id
	metrics.ActiveJobs.WithLabelValues(string(kind)).Inc()
}
