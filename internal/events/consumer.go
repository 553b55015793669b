// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/metrics"
	"github.com/lumapost/lumapost/internal/models"
)

// HistoryWriter persists run outcomes.
type HistoryWriter interface {
	InsertOutcome(ctx context.Context, outcome *models.RunOutcome) error
}

// Broadcaster pushes a run outcome to live dashboard clients.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Consumer drains the run-outcome topic into history storage and the
// live dashboard. It runs as a supervised service.
type Consumer struct {
	bus         *Bus
	history     HistoryWriter
	broadcaster Broadcaster
	logger      zerolog.Logger
	messages    <-chan *message.Message
}

// NewConsumer creates an outcome consumer. broadcaster may be nil when
// there is no live dashboard attached.
func NewConsumer(bus *Bus, history HistoryWriter, broadcaster Broadcaster, logger zerolog.Logger) *Consumer {
	return &Consumer{
		bus:         bus,
		history:     history,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "outcome-consumer").Logger(),
	}
}

// Subscribe opens the outcome subscription. Call it before any producer
// can publish: outcomes recorded on the in-process channel before a
// subscriber exists are dropped, so the subscription must be live before
// the scheduling services start.
func (c *Consumer) Subscribe(ctx context.Context) error {
	messages, err := c.bus.Subscribe(ctx, TopicRunOutcomes)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicRunOutcomes, err)
	}
	c.messages = messages
	return nil
}

// Serve processes messages until the context is canceled, subscribing
// first if Subscribe was not called. Satisfies suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	if c.messages == nil {
		if err := c.Subscribe(ctx); err != nil {
			return err
		}
	}
	messages := c.messages

	c.logger.Info().Str("topic", TopicRunOutcomes).Msg("Outcome consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("outcome subscription closed")
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg *message.Message) {
	metrics.OutcomesConsumed.Inc()

	var outcome models.RunOutcome
	if err := json.Unmarshal(msg.Payload, &outcome); err != nil {
		c.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Failed to parse run outcome")
		// Ack malformed payloads; redelivery cannot fix them.
		msg.Ack()
		return
	}

	if err := c.history.InsertOutcome(ctx, &outcome); err != nil {
		metrics.OutcomeWriteErrors.Inc()
		c.logger.Error().Err(err).
			Str("outcome_id", outcome.ID).
			Str("location_id", outcome.LocationID).
			Msg("Failed to persist run outcome")
		msg.Nack()
		return
	}

	if c.broadcaster != nil {
		c.broadcaster.BroadcastJSON(outcome)
	}
	msg.Ack()
}
