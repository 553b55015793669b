// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumapost/lumapost/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return s
}

func sampleConfig(locationID string) *models.LocationAutomationConfig {
	return &models.LocationAutomationConfig{
		LocationID:                locationID,
		AccountID:                 "accounts/42",
		PostingEnabled:            true,
		ReplyEnabled:              true,
		ScheduleTime:              "09:00",
		Frequency:                 models.FrequencyDaily,
		Timezone:                  "America/Chicago",
		ReviewPollIntervalSeconds: 300,
		Metadata: models.LocationMetadata{
			BusinessName: "Corner Bakery",
			Keywords:     []string{"bakery", "coffee"},
			CallToAction: &models.CallToAction{Type: "LEARN_MORE", URL: "https://example.com"},
		},
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	persisted, err := s.Upsert(ctx, sampleConfig("accounts/42/locations/1"))
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if persisted.CreatedAt.IsZero() || persisted.UpdatedAt.IsZero() {
		t.Error("Upsert should stamp created_at and updated_at")
	}

	got, err := s.Get(ctx, "accounts/42/locations/1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored config")
	}
	if got.AccountID != "accounts/42" || got.ScheduleTime != "09:00" || got.Frequency != models.FrequencyDaily {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Metadata.BusinessName != "Corner Bakery" || len(got.Metadata.Keywords) != 2 {
		t.Errorf("metadata roundtrip mismatch: %+v", got.Metadata)
	}
	if got.Metadata.CallToAction == nil || got.Metadata.CallToAction.Type != "LEARN_MORE" {
		t.Errorf("call to action roundtrip mismatch: %+v", got.Metadata.CallToAction)
	}
	if got.LastRunAt != nil {
		t.Error("never-run location should have nil LastRunAt")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(context.Background(), "accounts/0/locations/0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get for missing location = %+v, want nil", got)
	}
}

func TestUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := sampleConfig("accounts/42/locations/1")
	first, err := s.Upsert(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg.ScheduleTime = "18:30"
	cfg.CreatedAt = first.CreatedAt
	if _, err := s.Upsert(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, cfg.LocationID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ScheduleTime != "18:30" {
		t.Errorf("ScheduleTime = %q, want 18:30", got.ScheduleTime)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on replace: %v -> %v", first.CreatedAt, got.CreatedAt)
	}
}

func TestGetAllEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	enabled := sampleConfig("accounts/42/locations/1")
	replyOnly := sampleConfig("accounts/42/locations/2")
	replyOnly.PostingEnabled = false
	off := sampleConfig("accounts/42/locations/3")
	off.PostingEnabled = false
	off.ReplyEnabled = false

	for _, cfg := range []*models.LocationAutomationConfig{enabled, replyOnly, off} {
		if _, err := s.Upsert(ctx, cfg); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetAllEnabled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("GetAllEnabled returned %d configs, want 2", len(got))
	}
	for _, cfg := range got {
		if cfg.LocationID == off.LocationID {
			t.Error("fully disabled location must not be returned")
		}
	}
}

func TestSetLastRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := sampleConfig("accounts/42/locations/1")
	if _, err := s.Upsert(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC)
	if err := s.SetLastRun(ctx, cfg.LocationID, at); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, cfg.LocationID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(at) {
		t.Errorf("LastRunAt = %v, want %v", got.LastRunAt, at)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := sampleConfig("accounts/42/locations/1")
	if _, err := s.Upsert(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, cfg.LocationID); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, cfg.LocationID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("config should be gone after Delete")
	}
}

func TestRunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		outcome := models.RunOutcome{
			ID:         uuid.NewString(),
			LocationID: "accounts/42/locations/1",
			Kind:       models.RunKindPost,
			Trigger:    models.TriggerScheduled,
			Status:     models.RunSuccess,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		if i == 2 {
			outcome.Status = models.RunFailed
			outcome.Reason = models.ReasonPublishError
			outcome.ErrorDetail = "rate limited"
		}
		if err := s.InsertOutcome(ctx, &outcome); err != nil {
			t.Fatal(err)
		}
	}

	// Another location's history stays separate.
	other := models.RunOutcome{
		ID:         uuid.NewString(),
		LocationID: "accounts/42/locations/2",
		Kind:       models.RunKindReply,
		Trigger:    models.TriggerScheduled,
		Status:     models.RunSuccess,
		ReviewID:   "r9",
		Timestamp:  base,
	}
	if err := s.InsertOutcome(ctx, &other); err != nil {
		t.Fatal(err)
	}

	got, err := s.History(ctx, "accounts/42/locations/1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("History returned %d outcomes, want 3", len(got))
	}
	// Newest first.
	if got[0].Status != models.RunFailed || got[0].Reason != models.ReasonPublishError {
		t.Errorf("newest outcome = %+v, want the failed one", got[0])
	}
	if got[0].ErrorDetail != "rate limited" {
		t.Errorf("ErrorDetail = %q", got[0].ErrorDetail)
	}

	// Limit applies.
	got, err = s.History(ctx, "accounts/42/locations/1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("History with limit 2 returned %d", len(got))
	}
}

func TestRunHistoryLimitClamping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		outcome := models.RunOutcome{
			ID:         uuid.NewString(),
			LocationID: "accounts/42/locations/1",
			Kind:       models.RunKindPost,
			Trigger:    models.TriggerScheduled,
			Status:     models.RunSuccess,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertOutcome(ctx, &outcome); err != nil {
			t.Fatal(err)
		}
	}

	// An oversized limit clamps to the 500 cap, not the 100 default.
	got, err := s.History(ctx, "accounts/42/locations/1", 100000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 120 {
		t.Errorf("History with oversized limit returned %d, want all 120", len(got))
	}

	// Zero and negative limits fall back to the default.
	got, err = s.History(ctx, "accounts/42/locations/1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Errorf("History with zero limit returned %d, want the 100 default", len(got))
	}
}
