// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/metrics"
	"github.com/lumapost/lumapost/internal/models"
)

// Pipelines orchestrates the post and review-check execution sequences
// for one location at a time. Every collaborator error is caught at the
// step that invoked it and converted into a failed RunOutcome; the only
// error a caller ever sees is ErrAlreadyRunning from the guard.
type Pipelines struct {
	settings  SettingsStore
	generator ContentGenerator
	replier   ReplyGenerator
	publisher Publisher
	tokens    TokenProvider
	reviews   ReviewSource
	submitter ReplySubmitter
	replied   ReplyCache
	recorder  OutcomeRecorder
	guard     *Guard

	// slots caps executions running at once across all locations; nil
	// means no cap.
	slots chan struct{}

	// runTimeout bounds one execution so a hung third-party call cannot
	// hold the guard indefinitely.
	runTimeout time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// PipelineDeps bundles the external collaborators the pipelines call.
type PipelineDeps struct {
	Settings  SettingsStore
	Generator ContentGenerator
	Replier   ReplyGenerator
	Publisher Publisher
	Tokens    TokenProvider
	Reviews   ReviewSource
	Submitter ReplySubmitter
	Replied   ReplyCache
	Recorder  OutcomeRecorder
}

// NewPipelines creates the pipeline orchestrator. maxConcurrent caps
// executions running at once across all locations; non-positive means
// no cap.
func NewPipelines(deps PipelineDeps, guard *Guard, maxConcurrent int, runTimeout time.Duration, logger *zerolog.Logger) *Pipelines {
	if runTimeout <= 0 {
		runTimeout = 2 * time.Minute
	}
	var slots chan struct{}
	if maxConcurrent > 0 {
		slots = make(chan struct{}, maxConcurrent)
	}
	return &Pipelines{
		settings:   deps.Settings,
		generator:  deps.Generator,
		replier:    deps.Replier,
		publisher:  deps.Publisher,
		tokens:     deps.Tokens,
		reviews:    deps.Reviews,
		submitter:  deps.Submitter,
		replied:    deps.Replied,
		recorder:   deps.Recorder,
		guard:      guard,
		slots:      slots,
		runTimeout: runTimeout,
		now:        time.Now,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// SetNow overrides the clock, for tests.
func (p *Pipelines) SetNow(now func() time.Time) {
	p.now = now
}

// acquireSlot blocks until a concurrency slot is free or the run's
// context expires. The wait counts against the run timeout, so a
// saturated system sheds runs rather than queueing them unboundedly.
func (p *Pipelines) acquireSlot(ctx context.Context) error {
	if p.slots == nil {
		return nil
	}
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for a run slot: %w", ctx.Err())
	}
}

func (p *Pipelines) releaseSlot() {
	if p.slots != nil {
		<-p.slots
	}
}

// RunPost executes one post pipeline run: acquire guard, generate
// content, publish, bump last-run, record the outcome, release guard.
//
// Returns ErrAlreadyRunning if the guard denies acquisition; all other
// failures are encoded in the returned outcome, never as errors.
func (p *Pipelines) RunPost(ctx context.Context, cfg *models.LocationAutomationConfig, trigger models.RunTrigger) (models.RunOutcome, error) {
	if !p.guard.TryAcquire(cfg.LocationID) {
		metrics.GuardRejections.WithLabelValues(string(models.RunKindPost)).Inc()
		return models.RunOutcome{}, ErrAlreadyRunning
	}
	defer p.guard.Release(cfg.LocationID)

	ctx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	started := p.now()
	outcome := models.NewOutcome(cfg.LocationID, models.RunKindPost, trigger, started)
	logger := p.logger.With().
		Str("location_id", cfg.LocationID).
		Str("trigger", string(trigger)).
		Logger()

	defer func() {
		p.recorder.Record(outcome)
		metrics.RecordRun(string(models.RunKindPost), string(trigger), string(outcome.Status), p.now().Sub(started))
		if outcome.Status == models.RunFailed {
			metrics.RecordRunFailure(string(models.RunKindPost), string(outcome.Reason))
		}
	}()

	if err := p.acquireSlot(ctx); err != nil {
		logger.Warn().Err(err).Msg("No run slot within the run timeout")
		outcome.Fail(models.ReasonConcurrencyLimit, err)
		return outcome, nil
	}
	defer p.releaseSlot()

	credential, err := p.tokens.ValidToken(ctx, cfg.AccountID)
	if err != nil {
		logger.Error().Err(err).Msg("Token refresh failed")
		outcome.Fail(models.ReasonTokenError, err)
		return outcome, nil
	}
	if credential == "" {
		logger.Warn().Msg("No usable credential; skipping publish")
		outcome.Fail(models.ReasonNoCredential, ErrNoCredential)
		return outcome, nil
	}

	content, err := p.generator.Generate(ctx, cfg.Metadata)
	if err != nil {
		logger.Error().Err(err).Msg("Content generation failed")
		outcome.Fail(models.ReasonGenerationError, err)
		return outcome, nil
	}

	externalPostID, err := p.publisher.Publish(ctx, cfg.LocationID, credential, content)
	if err != nil {
		logger.Error().Err(err).Msg("Publish failed")
		outcome.Fail(models.ReasonPublishError, err)
		return outcome, nil
	}
	outcome.ExternalPostID = externalPostID

	// Last-run advances only on publish success. A write failure here is
	// logged but does not fail the run: the post is already live, and
	// marking the run failed would invite a duplicate catch-up.
	if err := p.settings.SetLastRun(ctx, cfg.LocationID, started); err != nil {
		logger.Error().Err(err).Msg("Failed to persist last run timestamp")
	}

	logger.Info().
		Str("external_post_id", externalPostID).
		Dur("duration", p.now().Sub(started)).
		Msg("Post published")
	return outcome, nil
}

// RunReviewCheck executes one review polling run: fetch recent reviews,
// drop already-replied ones, then generate and submit a reply per review.
// One outcome is recorded per reply attempt. Polling is idempotent so no
// location-level guard is needed; a per-invocation set prevents double
// submission of a review id repeated within one fetch.
func (p *Pipelines) RunReviewCheck(ctx context.Context, cfg *models.LocationAutomationConfig, trigger models.RunTrigger) ([]models.RunOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	started := p.now()
	logger := p.logger.With().
		Str("location_id", cfg.LocationID).
		Str("trigger", string(trigger)).
		Logger()

	fail := func(reason models.FailureReason, err error) []models.RunOutcome {
		outcome := models.NewOutcome(cfg.LocationID, models.RunKindReply, trigger, started)
		outcome.Fail(reason, err)
		p.recorder.Record(outcome)
		metrics.RecordRun(string(models.RunKindReply), string(trigger), string(models.RunFailed), p.now().Sub(started))
		metrics.RecordRunFailure(string(models.RunKindReply), string(reason))
		return []models.RunOutcome{outcome}
	}

	if err := p.acquireSlot(ctx); err != nil {
		logger.Warn().Err(err).Msg("No run slot within the run timeout")
		return fail(models.ReasonConcurrencyLimit, err), nil
	}
	defer p.releaseSlot()

	credential, err := p.tokens.ValidToken(ctx, cfg.AccountID)
	if err != nil {
		logger.Error().Err(err).Msg("Token refresh failed")
		return fail(models.ReasonTokenError, err), nil
	}
	if credential == "" {
		logger.Warn().Msg("No usable credential; skipping review check")
		return fail(models.ReasonNoCredential, ErrNoCredential), nil
	}

	reviews, err := p.reviews.FetchRecent(ctx, cfg.LocationID, credential)
	if err != nil {
		logger.Error().Err(err).Msg("Review fetch failed")
		return fail(models.ReasonFetchError, err), nil
	}

	seen := make(map[string]struct{}, len(reviews))
	var outcomes []models.RunOutcome

	for _, review := range reviews {
		if _, dup := seen[review.ReviewID]; dup {
			continue
		}
		seen[review.ReviewID] = struct{}{}

		already, err := p.replied.Replied(cfg.LocationID, review.ReviewID)
		if err != nil {
			logger.Error().Err(err).Str("review_id", review.ReviewID).Msg("Reply cache lookup failed")
			continue
		}
		if already {
			continue
		}

		outcomes = append(outcomes, p.replyToReview(ctx, cfg, credential, review, trigger))
	}

	logger.Debug().
		Int("fetched", len(reviews)).
		Int("replied", len(outcomes)).
		Msg("Review check complete")
	return outcomes, nil
}

// replyToReview handles one review: generate, submit, mark replied,
// record the per-review outcome.
func (p *Pipelines) replyToReview(ctx context.Context, cfg *models.LocationAutomationConfig, credential string, review models.Review, trigger models.RunTrigger) models.RunOutcome {
	started := p.now()
	outcome := models.NewOutcome(cfg.LocationID, models.RunKindReply, trigger, started)
	outcome.ReviewID = review.ReviewID
	logger := p.logger.With().
		Str("location_id", cfg.LocationID).
		Str("review_id", review.ReviewID).
		Logger()

	defer func() {
		p.recorder.Record(outcome)
		metrics.RecordRun(string(models.RunKindReply), string(trigger), string(outcome.Status), p.now().Sub(started))
		if outcome.Status == models.RunFailed {
			metrics.RecordRunFailure(string(models.RunKindReply), string(outcome.Reason))
		}
	}()

	replyText, err := p.replier.GenerateReply(ctx, cfg.Metadata, review)
	if err != nil {
		logger.Error().Err(err).Msg("Reply generation failed")
		outcome.Fail(models.ReasonGenerationError, err)
		return outcome
	}

	if err := p.submitter.SubmitReply(ctx, cfg.LocationID, review.ReviewID, credential, replyText); err != nil {
		logger.Error().Err(err).Msg("Reply submission failed")
		outcome.Fail(models.ReasonReplySubmitError, err)
		return outcome
	}

	if err := p.replied.MarkReplied(cfg.LocationID, review.ReviewID); err != nil {
		// The reply went out; a cache write failure risks one duplicate
		// reply next sweep, which the API tolerates (replies are upserts).
		logger.Error().Err(err).Msg("Failed to mark review replied")
	}

	logger.Info().Int("star_rating", review.StarRating).Msg("Review reply submitted")
	return outcome
}
