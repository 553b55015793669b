// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package gbp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lumapost/lumapost/internal/models"
)

type localPostRequest struct {
	LanguageCode string        `json:"languageCode"`
	Summary      string        `json:"summary"`
	TopicType    string        `json:"topicType"`
	CallToAction *callToAction `json:"callToAction,omitempty"`
}

type callToAction struct {
	ActionType string `json:"actionType"`
	URL        string `json:"url,omitempty"`
}

type localPostResponse struct {
	Name string `json:"name"`
}

// Publish creates a local post on the location's profile and returns
// the resource name the API assigned to it.
func (c *Client) Publish(ctx context.Context, locationID, credential string, content *models.PostContent) (string, error) {
	req := localPostRequest{
		LanguageCode: "en-US",
		Summary:      content.Content,
		TopicType:    "STANDARD",
	}
	if cta := content.CallToAction; cta != nil {
		req.CallToAction = &callToAction{ActionType: cta.Type, URL: cta.URL}
	}

	body, err := c.do(ctx, "publish_post", http.MethodPost, "/"+locationID+"/localPosts", credential, req)
	if err != nil {
		return "", fmt.Errorf("publish local post: %w", err)
	}

	var resp localPostResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode local post response: %w", err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("local post response missing resource name")
	}

	c.logger.Info().
		Str("location_id", locationID).
		Str("post_name", resp.Name).
		Msg("Published local post")
	return resp.Name, nil
}
