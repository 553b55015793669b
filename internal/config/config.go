// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package config holds all application configuration, loaded with layered
// precedence: built-in defaults, then an optional YAML file, then
// environment variables.
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import "time"

// Config is the root configuration for the Lumapost server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Reconciler ReconcilerConfig `koanf:"reconciler"`
	GBP        GBPConfig        `koanf:"gbp"`
	AI         AIConfig         `koanf:"ai"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment toggles production-only checks: development or production.
	Environment string `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings for settings and run history,
// plus the Badger directory used for reply dedup and token state.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`

	// Threads for DuckDB; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`

	// StateDir is the Badger directory for reply-dedup and OAuth token state.
	StateDir string `koanf:"state_dir"`
}

// SchedulerConfig holds automation scheduler settings.
type SchedulerConfig struct {
	// MaxConcurrentRuns caps pipeline executions running at once across
	// all locations.
	MaxConcurrentRuns int `koanf:"max_concurrent_runs"`

	// RunTimeout bounds a single pipeline execution.
	RunTimeout time.Duration `koanf:"run_timeout"`
}

// ReconcilerConfig holds missed-run reconciler settings.
type ReconcilerConfig struct {
	Enabled bool `koanf:"enabled"`

	// SweepInterval is how often the reconciler scans for missed posts.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// GraceWindow is how long past the due instant a run may still be
	// considered on time before the reconciler treats it as missed.
	GraceWindow time.Duration `koanf:"grace_window"`
}

// GBPConfig holds Google Business Profile API client settings.
type GBPConfig struct {
	BaseURL  string `koanf:"base_url"`
	TokenURL string `koanf:"token_url"`

	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	Timeout time.Duration `koanf:"timeout"`

	// RateLimitPerMinute throttles outbound API calls per account.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// Circuit breaker tuning.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRate float64       `koanf:"breaker_failure_rate"`
}

// AIConfig holds the content-generation backend settings. Any
// OpenAI-compatible chat completions endpoint works.
type AIConfig struct {
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	AdminUsername string `koanf:"admin_username"`
	// AdminPasswordHash is a bcrypt hash; plain AdminPassword is accepted
	// in development only.
	AdminPassword     string `koanf:"admin_password"`
	AdminPasswordHash string `koanf:"admin_password_hash"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
