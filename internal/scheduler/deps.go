// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package scheduler implements the automation core: per-location cadence
// and polling jobs, duplicate-post prevention, missed-run reconciliation,
// and the post/review pipelines that orchestrate external collaborators.
//
// The Facade is the only entry point the rest of the application uses.
// All timers live in the Registry and are rebuilt from the settings store
// on every Initialize, so the in-memory schedule is a derived cache, never
// a source of truth.
package scheduler

import (
	"context"
	"time"

	"github.com/lumapost/lumapost/internal/models"
)

// SettingsStore is the durable per-location automation configuration.
// Get returns (nil, nil) when no config exists for the location.
type SettingsStore interface {
	Get(ctx context.Context, locationID string) (*models.LocationAutomationConfig, error)
	GetAllEnabled(ctx context.Context) ([]models.LocationAutomationConfig, error)
	Upsert(ctx context.Context, cfg *models.LocationAutomationConfig) (*models.LocationAutomationConfig, error)
	SetLastRun(ctx context.Context, locationID string, at time.Time) error
}

// ContentGenerator produces post content from business metadata.
type ContentGenerator interface {
	Generate(ctx context.Context, meta models.LocationMetadata) (*models.PostContent, error)
}

// ReplyGenerator produces a reply to a customer review.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, meta models.LocationMetadata, review models.Review) (string, error)
}

// Publisher publishes a post to the business profile, returning the
// external post identifier.
type Publisher interface {
	Publish(ctx context.Context, locationID, credential string, content *models.PostContent) (string, error)
}

// TokenProvider resolves a usable access credential for an account.
// An empty credential with nil error means no credential exists; that is
// a signal, not a failure.
type TokenProvider interface {
	ValidToken(ctx context.Context, accountID string) (string, error)
}

// ReviewSource fetches recent reviews for a location.
type ReviewSource interface {
	FetchRecent(ctx context.Context, locationID, credential string) ([]models.Review, error)
}

// ReplySubmitter submits a reply to one review.
type ReplySubmitter interface {
	SubmitReply(ctx context.Context, locationID, reviewID, credential, replyText string) error
}

// ReplyCache tracks which reviews have already been replied to, so
// polling stays idempotent across sweeps.
type ReplyCache interface {
	Replied(locationID, reviewID string) (bool, error)
	MarkReplied(locationID, reviewID string) error
}

// OutcomeRecorder receives the result of every pipeline execution.
// Recording is fire-and-forget: a recording failure must not fail the run.
type OutcomeRecorder interface {
	Record(outcome models.RunOutcome)
}
