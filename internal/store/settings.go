// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/lumapost/lumapost/internal/models"
)

const settingsColumns = `location_id, account_id, posting_enabled, reply_enabled,
	schedule_time, frequency, timezone, review_poll_interval_seconds,
	last_run_at, metadata, created_at, updated_at`

// Get returns the automation config for one location, or (nil, nil) when
// none is stored.
func (s *Store) Get(ctx context.Context, locationID string) (cfg *models.LocationAutomationConfig, err error) {
	start := time.Now()
	defer func() { observe("select", "location_settings", start, err) }()

	row := s.conn.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM location_settings WHERE location_id = ?`, locationID)

	cfg, err = scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

// GetAllEnabled returns every location with posting or reply automation on.
func (s *Store) GetAllEnabled(ctx context.Context) (configs []models.LocationAutomationConfig, err error) {
	start := time.Now()
	defer func() { observe("select_enabled", "location_settings", start, err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+settingsColumns+` FROM location_settings
		 WHERE posting_enabled OR reply_enabled
		 ORDER BY location_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled locations: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		cfg, serr := scanSettings(rows)
		if serr != nil {
			return nil, serr
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// GetAll returns every stored location config.
func (s *Store) GetAll(ctx context.Context) (configs []models.LocationAutomationConfig, err error) {
	start := time.Now()
	defer func() { observe("select_all", "location_settings", start, err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+settingsColumns+` FROM location_settings ORDER BY location_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		cfg, serr := scanSettings(rows)
		if serr != nil {
			return nil, serr
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// Upsert inserts or replaces the config for a location and returns the
// persisted value with timestamps applied.
func (s *Store) Upsert(ctx context.Context, cfg *models.LocationAutomationConfig) (out *models.LocationAutomationConfig, err error) {
	start := time.Now()
	defer func() { observe("upsert", "location_settings", start, err) }()

	now := time.Now().UTC()
	persisted := *cfg
	persisted.UpdatedAt = now
	if persisted.CreatedAt.IsZero() {
		persisted.CreatedAt = now
	}

	metaJSON, err := json.Marshal(persisted.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO location_settings (`+settingsColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		persisted.LocationID, persisted.AccountID,
		persisted.PostingEnabled, persisted.ReplyEnabled,
		persisted.ScheduleTime, string(persisted.Frequency), persisted.Timezone,
		persisted.ReviewPollIntervalSeconds,
		nullableTime(persisted.LastRunAt), string(metaJSON),
		persisted.CreatedAt, persisted.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert settings: %w", err)
	}
	return &persisted, nil
}

// SetLastRun advances the last-run timestamp for a location.
func (s *Store) SetLastRun(ctx context.Context, locationID string, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update_last_run", "location_settings", start, err) }()

	_, err = s.conn.ExecContext(ctx,
		`UPDATE location_settings SET last_run_at = ?, updated_at = ? WHERE location_id = ?`,
		at.UTC(), time.Now().UTC(), locationID)
	if err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}
	return nil
}

// Delete removes a location's config.
func (s *Store) Delete(ctx context.Context, locationID string) (err error) {
	start := time.Now()
	defer func() { observe("delete", "location_settings", start, err) }()

	_, err = s.conn.ExecContext(ctx,
		`DELETE FROM location_settings WHERE location_id = ?`, locationID)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSettings(row scanner) (*models.LocationAutomationConfig, error) {
	var (
		cfg       models.LocationAutomationConfig
		frequency string
		lastRun   sql.NullTime
		metaJSON  string
	)
	err := row.Scan(
		&cfg.LocationID, &cfg.AccountID,
		&cfg.PostingEnabled, &cfg.ReplyEnabled,
		&cfg.ScheduleTime, &frequency, &cfg.Timezone,
		&cfg.ReviewPollIntervalSeconds,
		&lastRun, &metaJSON,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.Frequency = models.Frequency(frequency)
	if lastRun.Valid {
		t := lastRun.Time.UTC()
		cfg.LastRunAt = &t
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &cfg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", cfg.LocationID, err)
		}
	}
	return &cfg, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
