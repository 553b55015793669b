// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package store provides DuckDB-backed persistence for location
// automation settings and run history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/lumapost/lumapost/internal/config"
	"github.com/lumapost/lumapost/internal/logging"
	"github.com/lumapost/lumapost/internal/metrics"
)

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB
}

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists so first boot does not fail
	// with "No such file or directory".
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Auto-install/auto-load disabled to prevent hangs in restricted
	// network environments; no extensions are needed.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn}

	// DuckDB is an embedded single-writer database; keep the pool small.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := s.initSchema(context.Background()); err != nil {
		if cerr := conn.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close database after schema error")
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database opened")
	return s, nil
}

// NewInMemory opens an in-memory database, for tests.
func NewInMemory() (*Store, error) {
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates the tables if they do not exist.
func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS location_settings (
			location_id                  VARCHAR PRIMARY KEY,
			account_id                   VARCHAR NOT NULL,
			posting_enabled              BOOLEAN NOT NULL DEFAULT false,
			reply_enabled                BOOLEAN NOT NULL DEFAULT false,
			schedule_time                VARCHAR NOT NULL,
			frequency                    VARCHAR NOT NULL,
			timezone                     VARCHAR NOT NULL DEFAULT 'UTC',
			review_poll_interval_seconds INTEGER NOT NULL DEFAULT 300,
			last_run_at                  TIMESTAMP,
			metadata                     VARCHAR NOT NULL DEFAULT '{}',
			created_at                   TIMESTAMP NOT NULL,
			updated_at                   TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_history (
			id               VARCHAR PRIMARY KEY,
			location_id      VARCHAR NOT NULL,
			kind             VARCHAR NOT NULL,
			trigger_source   VARCHAR NOT NULL,
			status           VARCHAR NOT NULL,
			reason           VARCHAR,
			error_detail     VARCHAR,
			review_id        VARCHAR,
			external_post_id VARCHAR,
			created_at       TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_history_location ON run_history (location_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// observe records query metrics; deferred by callers so every query
// reports uniformly.
func observe(operation, table string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
}
