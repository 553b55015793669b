// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/models"
)

type mockHistory struct {
	mu       sync.Mutex
	outcomes []models.RunOutcome
	err      error
}

func (m *mockHistory) InsertOutcome(_ context.Context, outcome *models.RunOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.outcomes = append(m.outcomes, *outcome)
	return nil
}

func (m *mockHistory) stored() []models.RunOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RunOutcome(nil), m.outcomes...)
}

type mockBroadcaster struct {
	mu   sync.Mutex
	sent []any
}

func (m *mockBroadcaster) BroadcastJSON(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, v)
}

func (m *mockBroadcaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func sampleOutcome() models.RunOutcome {
	return models.RunOutcome{
		ID:             "o1",
		LocationID:     "accounts/42/locations/1",
		Kind:           models.RunKindPost,
		Trigger:        models.TriggerScheduled,
		Status:         models.RunSuccess,
		ExternalPostID: "posts/777",
		Timestamp:      time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRecordDeliversToConsumer(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("failed to close bus: %v", err)
		}
	})

	history := &mockHistory{}
	broadcaster := &mockBroadcaster{}
	consumer := NewConsumer(bus, history, broadcaster, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = consumer.Serve(ctx)
	}()

	// Give the subscription a moment to attach before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Record(sampleOutcome())

	waitFor(t, func() bool { return len(history.stored()) == 1 })
	got := history.stored()[0]
	if got.ID != "o1" || got.ExternalPostID != "posts/777" || got.Status != models.RunSuccess {
		t.Errorf("stored outcome = %+v", got)
	}

	waitFor(t, func() bool { return broadcaster.count() == 1 })
}

func TestOutcomePublishedBeforeServeIsDelivered(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("failed to close bus: %v", err)
		}
	})

	history := &mockHistory{}
	consumer := NewConsumer(bus, history, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Subscription opened ahead of Serve: an outcome recorded in the gap
	// (a catch-up fired before the delivery layer spun up) is buffered,
	// not dropped.
	if err := consumer.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	bus.Record(sampleOutcome())

	go func() {
		_ = consumer.Serve(ctx)
	}()

	waitFor(t, func() bool { return len(history.stored()) == 1 })
	if got := history.stored()[0]; got.ID != "o1" {
		t.Errorf("stored outcome = %+v", got)
	}
}

func TestConsumerWithoutBroadcaster(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("failed to close bus: %v", err)
		}
	})

	history := &mockHistory{}
	consumer := NewConsumer(bus, history, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = consumer.Serve(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Record(sampleOutcome())

	waitFor(t, func() bool { return len(history.stored()) == 1 })
}

func TestServeStopsOnCancel(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("failed to close bus: %v", err)
		}
	})

	consumer := NewConsumer(bus, &mockHistory{}, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
