// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package ai

import (
	"fmt"
	"strings"

	"github.com/lumapost/lumapost/internal/models"
)

const postSystemPrompt = `You write short Google Business Profile posts for local businesses.
Keep posts under 1400 characters, friendly and concrete. Mention the business
naturally. Never use hashtags, emojis, or placeholder text. Output only the
post body, no quotes or preamble.`

const replySystemPrompt = `You write owner replies to Google Business Profile reviews.
Be warm and specific, thank the reviewer by name when given, and keep replies
under 600 characters. For critical reviews, acknowledge the problem and invite
the customer to follow up directly. Never promise refunds or discounts.
Output only the reply text.`

func postUserPrompt(meta models.LocationMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", meta.BusinessName)
	if meta.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", meta.Category)
	}
	if len(meta.Keywords) > 0 {
		fmt.Fprintf(&b, "Themes to draw from: %s\n", strings.Join(meta.Keywords, ", "))
	}
	if meta.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", meta.Address)
	}
	if meta.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", meta.Phone)
	}
	b.WriteString("Write one post for this business.")
	return b.String()
}

func replyUserPrompt(meta models.LocationMetadata, review models.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", meta.BusinessName)
	if meta.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", meta.Category)
	}
	fmt.Fprintf(&b, "Star rating: %d of 5\n", review.StarRating)
	if review.Reviewer != "" {
		fmt.Fprintf(&b, "Reviewer: %s\n", review.Reviewer)
	}
	if review.Comment != "" {
		fmt.Fprintf(&b, "Review: %s\n", review.Comment)
	} else {
		b.WriteString("Review: (rating only, no text)\n")
	}
	b.WriteString("Write the owner reply.")
	return b.String()
}
