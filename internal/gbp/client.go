// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package gbp is the Google Business Profile API client: publishing
// local posts, fetching reviews, and submitting review replies. All
// outbound calls go through a shared rate limiter and circuit breaker so
// a degraded upstream cannot stall the pipelines or burn quota.
package gbp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/lumapost/lumapost/internal/config"
	"github.com/lumapost/lumapost/internal/metrics"
)

// Client calls the Business Profile v4 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[[]byte]
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// apiError is a non-2xx response from the API.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("business profile api returned %d: %s", e.StatusCode, e.Body)
}

// NewClient creates the API client from config.
func NewClient(cfg config.GBPConfig, logger *zerolog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "gbp-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= uint32(cfg.BreakerMinRequests) && failureRate >= cfg.BreakerFailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}

	perSecond := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
		limiter:    rate.NewLimiter(perSecond, cfg.RateLimitPerMinute),
		logger:     logger.With().Str("component", "gbp-client").Logger(),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// do performs one API call through the limiter and breaker, returning
// the response body for 2xx responses.
func (c *Client) do(ctx context.Context, operation, method, path, credential string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	started := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			data, merr := json.Marshal(payload)
			if merr != nil {
				return nil, fmt.Errorf("encode request: %w", merr)
			}
			reqBody = bytes.NewReader(data)
		}

		req, rerr := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if rerr != nil {
			return nil, rerr
		}
		req.Header.Set("Authorization", "Bearer "+credential)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, derr := c.httpClient.Do(req)
		if derr != nil {
			return nil, derr
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				c.logger.Debug().Err(cerr).Msg("Failed to close response body")
			}
		}()

		data, rerr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if rerr != nil {
			return nil, rerr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &apiError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordGBPRequest(operation, status, time.Since(started))
	return body, err
}
