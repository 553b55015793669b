// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package models defines the domain types shared across Lumapost:
// per-location automation settings, run outcomes, and the review/post
// payloads exchanged with the Business Profile API.
package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Frequency is the posting cadence for a location.
type Frequency string

const (
	FrequencyDaily         Frequency = "daily"
	FrequencyEveryOtherDay Frequency = "everyOtherDay"
	FrequencyWeekly        Frequency = "weekly"
)

// StrideDays returns the day stride between scheduled posts for the cadence.
func (f Frequency) StrideDays() int {
	switch f {
	case FrequencyEveryOtherDay:
		return 2
	case FrequencyWeekly:
		return 7
	default:
		return 1
	}
}

// Valid reports whether f is a known cadence.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyEveryOtherDay, FrequencyWeekly:
		return true
	}
	return false
}

// MinReviewPollInterval is the floor applied to review polling cadence to
// stay within Business Profile API quota.
const MinReviewPollInterval = 60

// CallToAction is the optional action button attached to a post.
type CallToAction struct {
	Type string `json:"type" koanf:"type"`
	URL  string `json:"url,omitempty" koanf:"url"`
}

// LocationMetadata is the business context handed to content generation.
// The scheduler passes it through without interpreting it.
type LocationMetadata struct {
	BusinessName string        `json:"business_name"`
	Category     string        `json:"category,omitempty"`
	Keywords     []string      `json:"keywords,omitempty"`
	Address      string        `json:"address,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	CallToAction *CallToAction `json:"call_to_action,omitempty"`
}

// LocationAutomationConfig is the durable automation settings for one
// business location. LocationID is the full Business Profile resource name
// ("accounts/{a}/locations/{l}") and is the unique key everywhere.
type LocationAutomationConfig struct {
	LocationID     string `json:"location_id" validate:"required"`
	AccountID      string `json:"account_id" validate:"required"`
	PostingEnabled bool   `json:"posting_enabled"`
	ReplyEnabled   bool   `json:"reply_enabled"`

	// ScheduleTime anchors the posting cadence, "HH:MM" in Timezone.
	ScheduleTime string    `json:"schedule_time" validate:"required"`
	Frequency    Frequency `json:"frequency" validate:"required"`
	Timezone     string    `json:"timezone"`

	ReviewPollIntervalSeconds int `json:"review_poll_interval_seconds"`

	// LastRunAt is the last successful post publish; nil if never run.
	// Monotonically non-decreasing under normal operation.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	Metadata LocationMetadata `json:"metadata"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural validity: required fields, a parseable
// schedule time, a loadable timezone, and a known frequency.
func (c *LocationAutomationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if !c.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", c.Frequency)
	}
	if _, err := time.Parse("15:04", c.ScheduleTime); err != nil {
		return fmt.Errorf("invalid schedule_time %q: %w", c.ScheduleTime, err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Normalize applies defaults and floors before persisting: UTC timezone,
// daily frequency, and the review poll interval floor.
func (c *LocationAutomationConfig) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Frequency == "" {
		c.Frequency = FrequencyDaily
	}
	if c.ReviewPollIntervalSeconds < MinReviewPollInterval {
		c.ReviewPollIntervalSeconds = MinReviewPollInterval
	}
}

// Location returns the time.Location for the config's timezone.
// Validate must have accepted the config first.
func (c *LocationAutomationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PostContent is a generated post ready to publish.
type PostContent struct {
	Content      string        `json:"content"`
	CallToAction *CallToAction `json:"call_to_action,omitempty"`
}

// Review is one customer review fetched from the Business Profile API.
type Review struct {
	ReviewID   string    `json:"review_id"`
	Reviewer   string    `json:"reviewer,omitempty"`
	StarRating int       `json:"star_rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
