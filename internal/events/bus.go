// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package events carries run outcomes from the pipelines to their
// consumers (history persistence, live dashboard updates) over an
// in-process Watermill pub/sub. Publishing is fire-and-forget so a slow
// consumer can never stall a pipeline.
package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/metrics"
	"github.com/lumapost/lumapost/internal/models"
)

// TopicRunOutcomes carries one JSON-encoded RunOutcome per message.
const TopicRunOutcomes = "automation.run_outcomes"

// Bus is the in-process outcome channel.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// NewBus creates the pub/sub. The buffer keeps publishers from blocking
// when a subscriber falls behind briefly.
func NewBus(logger zerolog.Logger) *Bus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, NewLoggerAdapter(logger))

	return &Bus{
		pubsub: pubsub,
		logger: logger.With().Str("component", "event-bus").Logger(),
	}
}

// Record publishes a run outcome. Failures are logged, never returned:
// an unrecorded outcome must not fail the run that produced it.
func (b *Bus) Record(outcome models.RunOutcome) {
	payload, err := json.Marshal(outcome)
	if err != nil {
		b.logger.Error().Err(err).Str("outcome_id", outcome.ID).Msg("Failed to encode run outcome")
		return
	}

	msg := message.NewMessage(outcome.ID, payload)
	msg.Metadata.Set("location_id", outcome.LocationID)
	msg.Metadata.Set("kind", string(outcome.Kind))

	if err := b.pubsub.Publish(TopicRunOutcomes, msg); err != nil {
		b.logger.Error().Err(err).Str("outcome_id", outcome.ID).Msg("Failed to publish run outcome")
		return
	}
	metrics.OutcomesPublished.Inc()
}

// Subscribe returns a message channel for a topic.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the pub/sub down; pending messages are dropped.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

var _ watermill.LoggerAdapter = (*zerologAdapter)(nil)
