// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import "errors"

var (
	// ErrConfigNotFound is returned when an operation references a
	// location with no stored automation config.
	ErrConfigNotFound = errors.New("automation config not found for location")

	// ErrAlreadyRunning is returned when a manual trigger is rejected
	// because a post pipeline is already in flight for the location.
	// Callers surface it as a non-fatal rejection, never a retry queue.
	ErrAlreadyRunning = errors.New("post pipeline already running for location")

	// ErrNoCredential signals that the token provider has no usable
	// credential for the account. Recorded as a failed outcome, never
	// propagated as a process-level failure.
	ErrNoCredential = errors.New("no valid credential for account")
)
