// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package gbp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/config"
)

func newTestTokenStore(t *testing.T, tokenURL string) *TokenStore {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close badger: %v", err)
		}
	})

	cfg := config.GBPConfig{
		TokenURL:     tokenURL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Timeout:      5 * time.Second,
	}
	logger := zerolog.Nop()
	return NewTokenStore(db, cfg, &logger)
}

func tokenEndpoint(t *testing.T, calls *atomic.Int64, wantRefresh string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != wantRefresh {
			t.Errorf("refresh_token = %q, want %q", got, wantRefresh)
		}
		if got := r.Form.Get("client_id"); got != "client-1" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"access_token":"at-1","expires_in":3600}`)); err != nil {
			t.Error(err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestValidTokenNoCredential(t *testing.T) {
	store := newTestTokenStore(t, "http://unused.invalid")

	token, err := store.ValidToken(context.Background(), "accounts/42")
	if err != nil {
		t.Fatalf("ValidToken failed: %v", err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty for missing credential", token)
	}
}

func TestValidTokenRefreshesAndCaches(t *testing.T) {
	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, "rt-1")
	store := newTestTokenStore(t, server.URL)

	if err := store.SaveCredential("accounts/42", "rt-1"); err != nil {
		t.Fatal(err)
	}

	token, err := store.ValidToken(context.Background(), "accounts/42")
	if err != nil {
		t.Fatalf("ValidToken failed: %v", err)
	}
	if token != "at-1" {
		t.Errorf("token = %q, want at-1", token)
	}

	// Second call is served from cache.
	if _, err := store.ValidToken(context.Background(), "accounts/42"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestValidTokenRefreshesWhenCacheExpired(t *testing.T) {
	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, "rt-1")
	store := newTestTokenStore(t, server.URL)

	if err := store.SaveCredential("accounts/42", "rt-1"); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	store.SetNow(func() time.Time { return now })
	if _, err := store.ValidToken(context.Background(), "accounts/42"); err != nil {
		t.Fatal(err)
	}

	// Advance past the cached token's expiry; the store must refresh.
	store.SetNow(func() time.Time { return now.Add(2 * time.Hour) })
	token, err := store.ValidToken(context.Background(), "accounts/42")
	if err != nil {
		t.Fatal(err)
	}
	if token != "at-1" {
		t.Errorf("token = %q", token)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("token endpoint called %d times, want 2", n)
	}
}

func TestSaveCredentialInvalidatesCachedAccess(t *testing.T) {
	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, "rt-2")
	store := newTestTokenStore(t, server.URL)

	if err := store.SaveCredential("accounts/42", "rt-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ValidToken(context.Background(), "accounts/42"); err != nil {
		t.Fatal(err)
	}

	// Re-saving drops the cached access token, so the next call hits the
	// endpoint again with the new refresh token.
	if err := store.SaveCredential("accounts/42", "rt-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ValidToken(context.Background(), "accounts/42"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("token endpoint called %d times, want 2", n)
	}
}

func TestSaveCredentialRejectsEmpty(t *testing.T) {
	store := newTestTokenStore(t, "http://unused.invalid")
	if err := store.SaveCredential("accounts/42", ""); err == nil {
		t.Error("expected error for empty refresh token")
	}
}

func TestDeleteCredential(t *testing.T) {
	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, "rt-1")
	store := newTestTokenStore(t, server.URL)

	if err := store.SaveCredential("accounts/42", "rt-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCredential("accounts/42"); err != nil {
		t.Fatal(err)
	}

	token, err := store.ValidToken(context.Background(), "accounts/42")
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty after delete", token)
	}

	has, err := store.HasCredential("accounts/42")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("HasCredential should be false after delete")
	}
}

func TestValidTokenEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	store := newTestTokenStore(t, server.URL)
	if err := store.SaveCredential("accounts/42", "rt-bad"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.ValidToken(context.Background(), "accounts/42"); err == nil {
		t.Error("expected error when the token endpoint rejects the refresh")
	}
}
