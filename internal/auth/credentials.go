// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/lumapost/lumapost/internal/config"
)

// CredentialVerifier checks the admin username and password.
type CredentialVerifier struct {
	username     string
	passwordHash []byte
}

// NewCredentialVerifier builds a verifier from config. A pre-hashed
// ADMIN_PASSWORD_HASH is preferred; a plain ADMIN_PASSWORD is hashed at
// startup and only allowed outside production.
func NewCredentialVerifier(cfg *config.SecurityConfig) (*CredentialVerifier, error) {
	if cfg.AdminUsername == "" {
		return nil, fmt.Errorf("admin username is required")
	}

	var hash []byte
	switch {
	case cfg.AdminPasswordHash != "":
		hash = []byte(cfg.AdminPasswordHash)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a valid bcrypt hash: %w", err)
		}
	case cfg.AdminPassword != "":
		if len(cfg.AdminPassword) < 8 {
			return nil, fmt.Errorf("admin password must be at least 8 characters")
		}
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), 12)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		hash = h
	default:
		return nil, fmt.Errorf("either ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}

	return &CredentialVerifier{
		username:     cfg.AdminUsername,
		passwordHash: hash,
	}, nil
}

// Verify checks a username/password pair. Both comparisons run
// unconditionally so response timing does not reveal which field failed.
func (v *CredentialVerifier) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}
