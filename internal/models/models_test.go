// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package models

import (
	"errors"
	"testing"
	"time"
)

func validConfig() LocationAutomationConfig {
	return LocationAutomationConfig{
		LocationID:                "accounts/123/locations/456",
		AccountID:                 "accounts/123",
		PostingEnabled:            true,
		ScheduleTime:              "09:30",
		Frequency:                 FrequencyDaily,
		Timezone:                  "America/New_York",
		ReviewPollIntervalSeconds: 300,
		Metadata: LocationMetadata{
			BusinessName: "Corner Bakery",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LocationAutomationConfig)
		wantErr bool
	}{
		{"valid", func(c *LocationAutomationConfig) {}, false},
		{"missing location id", func(c *LocationAutomationConfig) { c.LocationID = "" }, true},
		{"missing account id", func(c *LocationAutomationConfig) { c.AccountID = "" }, true},
		{"missing schedule time", func(c *LocationAutomationConfig) { c.ScheduleTime = "" }, true},
		{"bad schedule time", func(c *LocationAutomationConfig) { c.ScheduleTime = "25:99" }, true},
		{"schedule time with seconds", func(c *LocationAutomationConfig) { c.ScheduleTime = "09:30:00" }, true},
		{"unknown frequency", func(c *LocationAutomationConfig) { c.Frequency = "fortnightly" }, true},
		{"bad timezone", func(c *LocationAutomationConfig) { c.Timezone = "Mars/Olympus" }, true},
		{"empty timezone ok", func(c *LocationAutomationConfig) { c.Timezone = "" }, false},
		{"weekly ok", func(c *LocationAutomationConfig) { c.Frequency = FrequencyWeekly }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := LocationAutomationConfig{
		LocationID:                "accounts/1/locations/2",
		AccountID:                 "accounts/1",
		ScheduleTime:              "10:00",
		ReviewPollIntervalSeconds: 5,
	}
	cfg.Normalize()

	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.Frequency != FrequencyDaily {
		t.Errorf("Frequency = %q, want daily", cfg.Frequency)
	}
	if cfg.ReviewPollIntervalSeconds != MinReviewPollInterval {
		t.Errorf("ReviewPollIntervalSeconds = %d, want %d", cfg.ReviewPollIntervalSeconds, MinReviewPollInterval)
	}

	// Values above the floor are left alone.
	cfg.ReviewPollIntervalSeconds = 600
	cfg.Normalize()
	if cfg.ReviewPollIntervalSeconds != 600 {
		t.Errorf("ReviewPollIntervalSeconds = %d, want 600", cfg.ReviewPollIntervalSeconds)
	}
}

func TestFrequencyStrideDays(t *testing.T) {
	tests := []struct {
		freq Frequency
		want int
	}{
		{FrequencyDaily, 1},
		{FrequencyEveryOtherDay, 2},
		{FrequencyWeekly, 7},
	}
	for _, tt := range tests {
		if got := tt.freq.StrideDays(); got != tt.want {
			t.Errorf("StrideDays(%q) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestOutcomeFail(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	o := NewOutcome("accounts/1/locations/2", RunKindPost, TriggerScheduled, now)

	if o.Status != RunSuccess {
		t.Fatalf("new outcome status = %q, want success", o.Status)
	}
	if o.ID == "" {
		t.Fatal("new outcome missing ID")
	}

	o.Fail(ReasonPublishError, errors.New("rate limited"))
	if o.Status != RunFailed {
		t.Errorf("status = %q, want failed", o.Status)
	}
	if o.Reason != ReasonPublishError {
		t.Errorf("reason = %q, want publish_error", o.Reason)
	}
	if o.ErrorDetail != "rate limited" {
		t.Errorf("error detail = %q", o.ErrorDetail)
	}
}
