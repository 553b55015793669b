// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package ai generates post content and review replies through an
// OpenAI-compatible chat completions endpoint.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/config"
	"github.com/lumapost/lumapost/internal/models"
)

// Client talks to a chat completions API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	logger      zerolog.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewClient creates the generation client from config.
func NewClient(cfg config.AIConfig, logger *zerolog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.With().Str("component", "ai-client").Logger(),
	}
}

// Generate produces post content for a business.
func (c *Client) Generate(ctx context.Context, meta models.LocationMetadata) (*models.PostContent, error) {
	text, err := c.complete(ctx, postSystemPrompt, postUserPrompt(meta))
	if err != nil {
		return nil, fmt.Errorf("generate post content: %w", err)
	}

	content := &models.PostContent{Content: text}
	if meta.CallToAction != nil {
		content.CallToAction = meta.CallToAction
	}
	return content, nil
}

// GenerateReply produces a reply to one customer review.
func (c *Client) GenerateReply(ctx context.Context, meta models.LocationMetadata, review models.Review) (string, error) {
	text, err := c.complete(ctx, replySystemPrompt, replyUserPrompt(meta, review))
	if err != nil {
		return "", fmt.Errorf("generate review reply: %w", err)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug().Err(cerr).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, string(body))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	text := strings.TrimSpace(cr.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat response content is empty")
	}
	return text, nil
}
