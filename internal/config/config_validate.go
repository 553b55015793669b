// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateReconciler(); err != nil {
		return err
	}
	if err := c.validateGBP(); err != nil {
		return err
	}
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MaxConcurrentRuns < 1 {
		return fmt.Errorf("SCHEDULER_MAX_CONCURRENT must be at least 1, got %d", c.Scheduler.MaxConcurrentRuns)
	}
	if c.Scheduler.RunTimeout <= 0 {
		return fmt.Errorf("SCHEDULER_RUN_TIMEOUT must be positive, got %v", c.Scheduler.RunTimeout)
	}
	return nil
}

func (c *Config) validateReconciler() error {
	if !c.Reconciler.Enabled {
		return nil
	}
	if c.Reconciler.SweepInterval < time.Minute {
		return fmt.Errorf("RECONCILER_SWEEP_INTERVAL must be at least 1m, got %v", c.Reconciler.SweepInterval)
	}
	if c.Reconciler.GraceWindow <= 0 {
		return fmt.Errorf("RECONCILER_GRACE_WINDOW must be positive, got %v", c.Reconciler.GraceWindow)
	}
	return nil
}

func (c *Config) validateGBP() error {
	if err := validateHTTPURL(c.GBP.BaseURL, "GBP_BASE_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.GBP.TokenURL, "GBP_TOKEN_URL"); err != nil {
		return err
	}
	if c.GBP.RateLimitPerMinute < 1 {
		return fmt.Errorf("GBP_RATE_LIMIT_PER_MIN must be at least 1, got %d", c.GBP.RateLimitPerMinute)
	}
	if c.GBP.BreakerFailureRate <= 0 || c.GBP.BreakerFailureRate > 1 {
		return fmt.Errorf("GBP_BREAKER_FAILURE_RATE must be in (0, 1], got %v", c.GBP.BreakerFailureRate)
	}
	return nil
}

func (c *Config) validateAI() error {
	if err := validateHTTPURL(c.AI.BaseURL, "AI_BASE_URL"); err != nil {
		return err
	}
	if c.AI.Model == "" {
		return fmt.Errorf("AI_MODEL is required")
	}
	if c.AI.MaxTokens < 1 {
		return fmt.Errorf("AI_MAX_TOKENS must be at least 1, got %d", c.AI.MaxTokens)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.IsProduction() {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Security.AdminUsername == "" {
			return fmt.Errorf("ADMIN_USERNAME is required in production")
		}
		if c.Security.AdminPasswordHash == "" {
			return fmt.Errorf("ADMIN_PASSWORD_HASH is required in production; plain ADMIN_PASSWORD is development only")
		}
	}
	if c.Security.AdminPassword != "" && c.Security.AdminPasswordHash != "" {
		return fmt.Errorf("set either ADMIN_PASSWORD or ADMIN_PASSWORD_HASH, not both")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, disabled; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that the value is an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
