// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package models

import (
	"time"

	"github.com/google/uuid"
)

// RunKind distinguishes the two pipelines.
type RunKind string

const (
	RunKindPost  RunKind = "post"
	RunKindReply RunKind = "reply"
)

// RunTrigger records how a run was initiated.
type RunTrigger string

const (
	TriggerScheduled RunTrigger = "scheduled"
	TriggerManual    RunTrigger = "manual"
	TriggerCatchup   RunTrigger = "catchup"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// FailureReason classifies why a run failed. Empty on success.
type FailureReason string

const (
	ReasonNoCredential     FailureReason = "no_credential"
	ReasonTokenError       FailureReason = "token_error"
	ReasonGenerationError  FailureReason = "generation_error"
	ReasonPublishError     FailureReason = "publish_error"
	ReasonFetchError       FailureReason = "fetch_error"
	ReasonReplySubmitError FailureReason = "reply_submit_error"
	ReasonStoreError       FailureReason = "store_error"
	ReasonConcurrencyLimit FailureReason = "concurrency_limit"
)

// RunOutcome is the record of one pipeline execution, published on the
// event bus and persisted to run history.
type RunOutcome struct {
	ID         string        `json:"id"`
	LocationID string        `json:"location_id"`
	Kind       RunKind       `json:"kind"`
	Trigger    RunTrigger    `json:"trigger"`
	Status     RunStatus     `json:"status"`
	Reason     FailureReason `json:"reason,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`

	// ReviewID is set for reply runs, ExternalPostID for successful post runs.
	ReviewID       string `json:"review_id,omitempty"`
	ExternalPostID string `json:"external_post_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewOutcome constructs a run outcome with a fresh ID.
func NewOutcome(locationID string, kind RunKind, trigger RunTrigger, at time.Time) RunOutcome {
	return RunOutcome{
		ID:         uuid.NewString(),
		LocationID: locationID,
		Kind:       kind,
		Trigger:    trigger,
		Status:     RunSuccess,
		Timestamp:  at,
	}
}

// Fail marks the outcome failed with a reason and the causing error.
func (o *RunOutcome) Fail(reason FailureReason, err error) {
	o.Status = RunFailed
	o.Reason = reason
	if err != nil {
		o.ErrorDetail = err.Error()
	}
}
