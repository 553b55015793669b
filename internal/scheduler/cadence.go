// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import (
	"fmt"
	"time"

	"github.com/lumapost/lumapost/internal/models"
)

// cadenceSchedule implements cron.Schedule for the posting cadence: fire
// at a fixed time of day in the location's timezone, striding whole days
// per the configured frequency (daily=1, everyOtherDay=2, weekly=7).
//
// The stride anchors on the last successful run when one exists, so a
// location that posted yesterday on an everyOtherDay cadence is next due
// tomorrow, not today. lastRun is read at every Next computation, which
// keeps the timer honest after manual triggers and catch-ups.
type cadenceSchedule struct {
	hour, minute int
	stride       int
	loc          *time.Location
	lastRun      func() *time.Time
}

// newCadenceSchedule parses the "HH:MM" schedule time and builds a
// cadence schedule. lastRun may return nil for never-run locations.
func newCadenceSchedule(scheduleTime string, freq models.Frequency, loc *time.Location, lastRun func() *time.Time) (*cadenceSchedule, error) {
	t, err := time.Parse("15:04", scheduleTime)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", scheduleTime, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if lastRun == nil {
		lastRun = func() *time.Time { return nil }
	}
	return &cadenceSchedule{
		hour:    t.Hour(),
		minute:  t.Minute(),
		stride:  freq.StrideDays(),
		loc:     loc,
		lastRun: lastRun,
	}, nil
}

// Next returns the next fire time strictly after t.
func (s *cadenceSchedule) Next(t time.Time) time.Time {
	t = t.In(s.loc)

	// Anchor: the day after the last run plus the stride, or today for
	// never-run locations.
	anchor := t
	if last := s.lastRun(); last != nil {
		anchor = last.In(s.loc).AddDate(0, 0, s.stride)
	}

	candidate := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), s.hour, s.minute, 0, 0, s.loc)
	for !candidate.After(t) {
		candidate = candidate.AddDate(0, 0, s.stride)
	}
	return candidate
}

// mostRecentDue returns the latest scheduled occurrence at or before now
// for the location's cadence, honoring the stride from the last run.
// ok is false when nothing is due yet (the first occurrence is still in
// the future).
//
// A never-run location is due at today's schedule time once it has
// passed. A location with a last run is due stride days after it; when
// multiple occurrences were missed, only the most recent one is reported,
// so a reconciler catch-up fires exactly once, not once per missed day.
func mostRecentDue(cfg *models.LocationAutomationConfig, now time.Time) (time.Time, bool) {
	t, err := time.Parse("15:04", cfg.ScheduleTime)
	if err != nil {
		return time.Time{}, false
	}
	loc := cfg.Location()
	now = now.In(loc)
	stride := cfg.Frequency.StrideDays()

	anchor := now
	if cfg.LastRunAt != nil {
		anchor = cfg.LastRunAt.In(loc).AddDate(0, 0, stride)
	}

	candidate := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	if candidate.After(now) {
		return time.Time{}, false
	}
	for {
		next := candidate.AddDate(0, 0, stride)
		if next.After(now) {
			return candidate, true
		}
		candidate = next
	}
}
