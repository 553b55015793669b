// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package gbp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lumapost/lumapost/internal/config"
)

const (
	refreshKeyPrefix = "gbp:refresh:"
	accessKeyPrefix  = "gbp:access:"

	// accessExpirySlack keeps us from handing out a token that expires
	// mid-request.
	accessExpirySlack = 30 * time.Second
)

// TokenStore resolves OAuth access tokens for accounts. Refresh tokens
// are stored durably in Badger; access tokens are cached there with a
// TTL derived from the token endpoint's expires_in.
type TokenStore struct {
	db         *badger.DB
	httpClient *http.Client
	tokenURL   string
	clientID   string
	secret     string
	logger     zerolog.Logger
	now        func() time.Time
}

type cachedAccess struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewTokenStore creates a token store on an open Badger database.
func NewTokenStore(db *badger.DB, cfg config.GBPConfig, logger *zerolog.Logger) *TokenStore {
	return &TokenStore{
		db:         db,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokenURL:   cfg.TokenURL,
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		logger:     logger.With().Str("component", "gbp-tokens").Logger(),
		now:        time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *TokenStore) SetNow(now func() time.Time) {
	s.now = now
}

// SaveCredential stores the refresh token for an account and drops any
// cached access token so the next request uses the new credential.
func (s *TokenStore) SaveCredential(accountID, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("refresh token must not be empty")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(refreshKeyPrefix+accountID), []byte(refreshToken)); err != nil {
			return err
		}
		err := txn.Delete([]byte(accessKeyPrefix + accountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.logger.Info().Str("account_id", accountID).Msg("Stored account credential")
	return nil
}

// DeleteCredential removes the stored refresh token and cached access
// token for an account.
func (s *TokenStore) DeleteCredential(accountID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{refreshKeyPrefix + accountID, accessKeyPrefix + accountID} {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// HasCredential reports whether a refresh token is stored for the account.
func (s *TokenStore) HasCredential(accountID string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(refreshKeyPrefix + accountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// ValidToken returns a usable access token for the account. An empty
// token with a nil error means no credential is stored for the account.
func (s *TokenStore) ValidToken(ctx context.Context, accountID string) (string, error) {
	if token := s.cachedToken(accountID); token != "" {
		return token, nil
	}

	refresh, err := s.refreshToken(accountID)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", nil
	}

	token, expiresIn, err := s.exchange(ctx, refresh)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	s.cacheToken(accountID, token, expiresIn)
	return token, nil
}

func (s *TokenStore) cachedToken(accountID string) string {
	var token string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(accessKeyPrefix + accountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var cached cachedAccess
			if err := json.Unmarshal(val, &cached); err != nil {
				return err
			}
			if s.now().Add(accessExpirySlack).Before(cached.ExpiresAt) {
				token = cached.Token
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Access token cache read failed")
		return ""
	}
	return token
}

func (s *TokenStore) refreshToken(accountID string) (string, error) {
	var refresh string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(refreshKeyPrefix + accountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			refresh = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("read stored credential: %w", err)
	}
	return refresh, nil
}

func (s *TokenStore) cacheToken(accountID, token string, expiresIn time.Duration) {
	cached := cachedAccess{Token: token, ExpiresAt: s.now().Add(expiresIn)}
	data, err := json.Marshal(cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode access token for cache")
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(accessKeyPrefix+accountID), data).WithTTL(expiresIn)
		return txn.SetEntry(entry)
	})
	if err != nil {
		// Cache failure is not fatal; the next call refreshes again.
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Access token cache write failed")
	}
}

func (s *TokenStore) exchange(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Debug().Err(cerr).Msg("Failed to close token response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return tr.AccessToken, expiresIn, nil
}
