// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package gbp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/lumapost/lumapost/internal/models"
)

const reviewPageSize = 50

type reviewsResponse struct {
	Reviews []apiReview `json:"reviews"`
}

type apiReview struct {
	ReviewID   string       `json:"reviewId"`
	Reviewer   *apiReviewer `json:"reviewer"`
	StarRating string       `json:"starRating"`
	Comment    string       `json:"comment"`
	CreateTime time.Time    `json:"createTime"`
}

type apiReviewer struct {
	DisplayName string `json:"displayName"`
}

type reviewReplyRequest struct {
	Comment string `json:"comment"`
}

// FetchRecent returns the most recent page of reviews for a location.
// Polling only needs the newest reviews; older ones were either replied
// to already or are past the reply window.
func (c *Client) FetchRecent(ctx context.Context, locationID, credential string) ([]models.Review, error) {
	path := fmt.Sprintf("/%s/reviews?pageSize=%d&orderBy=updateTime%%20desc", locationID, reviewPageSize)
	body, err := c.do(ctx, "fetch_reviews", http.MethodGet, path, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}

	var resp reviewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode reviews response: %w", err)
	}

	reviews := make([]models.Review, 0, len(resp.Reviews))
	for _, r := range resp.Reviews {
		review := models.Review{
			ReviewID:   r.ReviewID,
			StarRating: starRatingValue(r.StarRating),
			Comment:    r.Comment,
			CreatedAt:  r.CreateTime,
		}
		if r.Reviewer != nil {
			review.Reviewer = r.Reviewer.DisplayName
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// SubmitReply upserts the owner reply on a review.
func (c *Client) SubmitReply(ctx context.Context, locationID, reviewID, credential, replyText string) error {
	path := "/" + locationID + "/reviews/" + reviewID + "/reply"
	_, err := c.do(ctx, "submit_reply", http.MethodPut, path, credential, reviewReplyRequest{Comment: replyText})
	if err != nil {
		return fmt.Errorf("submit review reply: %w", err)
	}

	c.logger.Info().
		Str("location_id", locationID).
		Str("review_id", reviewID).
		Msg("Submitted review reply")
	return nil
}

// starRatingValue maps the API's star rating enum to a number. Unknown
// values map to 0 rather than failing the whole fetch.
func starRatingValue(s string) int {
	switch s {
	case "ONE":
		return 1
	case "TWO":
		return 2
	case "THREE":
		return 3
	case "FOUR":
		return 4
	case "FIVE":
		return 5
	default:
		return 0
	}
}
