// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lumapost/lumapost/internal/models"
)

const historyColumns = `id, location_id, kind, trigger_source, status,
	reason, error_detail, review_id, external_post_id, created_at`

// InsertOutcome persists one run outcome to history.
func (s *Store) InsertOutcome(ctx context.Context, outcome *models.RunOutcome) (err error) {
	start := time.Now()
	defer func() { observe("insert", "run_history", start, err) }()

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO run_history (`+historyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.ID, outcome.LocationID,
		string(outcome.Kind), string(outcome.Trigger), string(outcome.Status),
		nullableString(string(outcome.Reason)), nullableString(outcome.ErrorDetail),
		nullableString(outcome.ReviewID), nullableString(outcome.ExternalPostID),
		outcome.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run outcome: %w", err)
	}
	return nil
}

// History returns the most recent run outcomes for a location, newest
// first, capped at limit.
func (s *Store) History(ctx context.Context, locationID string, limit int) (outcomes []models.RunOutcome, err error) {
	start := time.Now()
	defer func() { observe("select", "run_history", start, err) }()

	if limit <= 0 {
		limit = 100
	} else if limit > 500 {
		limit = 500
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM run_history
		 WHERE location_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		var (
			o                                      models.RunOutcome
			kind, trigger, status                  string
			reason, detail, reviewID, externalPost sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.LocationID, &kind, &trigger, &status,
			&reason, &detail, &reviewID, &externalPost, &o.Timestamp); err != nil {
			return nil, err
		}
		o.Kind = models.RunKind(kind)
		o.Trigger = models.RunTrigger(trigger)
		o.Status = models.RunStatus(status)
		o.Reason = models.FailureReason(reason.String)
		o.ErrorDetail = detail.String
		o.ReviewID = reviewID.String
		o.ExternalPostID = externalPost.String
		o.Timestamp = o.Timestamp.UTC()
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
