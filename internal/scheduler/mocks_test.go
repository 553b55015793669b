// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/lumapost/lumapost/internal/models"
)

// mockSettings implements SettingsStore for testing.
type mockSettings struct {
	mu            sync.Mutex
	configs       map[string]*models.LocationAutomationConfig
	getErr        error
	getAllErr     error
	upsertErr     error
	setLastRunErr error
	lastRunWrites []lastRunWrite
}

type lastRunWrite struct {
	LocationID string
	At         time.Time
}

func newMockSettings() *mockSettings {
	return &mockSettings{configs: make(map[string]*models.LocationAutomationConfig)}
}

func (m *mockSettings) put(cfg *models.LocationAutomationConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.configs[cfg.LocationID] = &cp
}

func (m *mockSettings) Get(_ context.Context, locationID string) (*models.LocationAutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	cfg, ok := m.configs[locationID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (m *mockSettings) GetAllEnabled(_ context.Context) ([]models.LocationAutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getAllErr != nil {
		return nil, m.getAllErr
	}
	var out []models.LocationAutomationConfig
	for _, cfg := range m.configs {
		if cfg.PostingEnabled || cfg.ReplyEnabled {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (m *mockSettings) Upsert(_ context.Context, cfg *models.LocationAutomationConfig) (*models.LocationAutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	cp := *cfg
	m.configs[cfg.LocationID] = &cp
	out := cp
	return &out, nil
}

func (m *mockSettings) SetLastRun(_ context.Context, locationID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setLastRunErr != nil {
		return m.setLastRunErr
	}
	m.lastRunWrites = append(m.lastRunWrites, lastRunWrite{LocationID: locationID, At: at})
	if cfg, ok := m.configs[locationID]; ok {
		t := at
		cfg.LastRunAt = &t
	}
	return nil
}

// mockGenerator implements ContentGenerator and ReplyGenerator.
type mockGenerator struct {
	mu         sync.Mutex
	content    *models.PostContent
	reply      string
	err        error
	calls      int
	replyCalls int
	lastMeta   models.LocationMetadata
}

func (m *mockGenerator) Generate(_ context.Context, meta models.LocationMetadata) (*models.PostContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMeta = meta
	if m.err != nil {
		return nil, m.err
	}
	return m.content, nil
}

func (m *mockGenerator) GenerateReply(_ context.Context, _ models.LocationMetadata, _ models.Review) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyCalls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// mockPublisher implements Publisher. If block is non-nil, Publish waits
// on it, letting tests hold a pipeline mid-flight.
type mockPublisher struct {
	mu     sync.Mutex
	postID string
	err    error
	calls  int
	block  chan struct{}
}

func (m *mockPublisher) Publish(_ context.Context, _, _ string, _ *models.PostContent) (string, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	err := m.err
	postID := m.postID
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return "", err
	}
	return postID, nil
}

func (m *mockPublisher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockTokens implements TokenProvider.
type mockTokens struct {
	token string
	err   error
}

func (m *mockTokens) ValidToken(_ context.Context, _ string) (string, error) {
	return m.token, m.err
}

// mockReviews implements ReviewSource.
type mockReviews struct {
	reviews []models.Review
	err     error
}

func (m *mockReviews) FetchRecent(_ context.Context, _, _ string) ([]models.Review, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.reviews, nil
}

// mockSubmitter implements ReplySubmitter.
type mockSubmitter struct {
	mu        sync.Mutex
	err       error
	submitted []string
}

func (m *mockSubmitter) SubmitReply(_ context.Context, _, reviewID, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.submitted = append(m.submitted, reviewID)
	return nil
}

// mockReplyCache implements ReplyCache.
type mockReplyCache struct {
	mu      sync.Mutex
	replied map[string]struct{}
}

func newMockReplyCache() *mockReplyCache {
	return &mockReplyCache{replied: make(map[string]struct{})}
}

func (m *mockReplyCache) key(locationID, reviewID string) string {
	return locationID + "/" + reviewID
}

func (m *mockReplyCache) Replied(locationID, reviewID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.replied[m.key(locationID, reviewID)]
	return ok, nil
}

func (m *mockReplyCache) MarkReplied(locationID, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replied[m.key(locationID, reviewID)] = struct{}{}
	return nil
}

// mockRecorder implements OutcomeRecorder.
type mockRecorder struct {
	mu       sync.Mutex
	outcomes []models.RunOutcome
}

func (m *mockRecorder) Record(outcome models.RunOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockRecorder) recorded() []models.RunOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RunOutcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}
