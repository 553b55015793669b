// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import "sync"

// Guard prevents two concurrent post pipeline executions for the same
// location, whether triggered by the cadence job, a manual trigger, or a
// reconciler catch-up racing each other.
//
// Acquisition is strictly non-blocking: callers that fail to acquire skip
// the run (automatic triggers) or reject with ErrAlreadyRunning (manual
// triggers). Nothing ever waits on the guard.
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

// TryAcquire atomically checks absence and inserts the location.
// Returns false if the location is already mid-execution.
func (g *Guard) TryAcquire(locationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.held[locationID]; exists {
		return false
	}
	g.held[locationID] = struct{}{}
	return true
}

// Release removes the location from the held set. Must be called exactly
// once per successful TryAcquire, on every pipeline exit path.
func (g *Guard) Release(locationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, locationID)
}

// Held reports whether the location is currently mid-execution.
func (g *Guard) Held(locationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.held[locationID]
	return exists
}
