// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package replycache tracks which reviews have already received an
// automated reply, backed by BadgerDB so review polling stays idempotent
// across process restarts.
package replycache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const repliedKeyPrefix = "replied:"

// Cache is a durable set of (locationID, reviewID) pairs.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// New creates a reply cache on an open Badger database. Entries expire
// after ttl so the set does not grow unbounded; the review API stops
// returning old reviews long before that.
func New(db *badger.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 180 * 24 * time.Hour
	}
	return &Cache{db: db, ttl: ttl}
}

// Replied reports whether a reply was already sent for the review.
func (c *Cache) Replied(locationID, reviewID string) (bool, error) {
	var found bool
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(locationID, reviewID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reply cache lookup: %w", err)
	}
	return found, nil
}

// MarkReplied records that a reply was sent for the review.
func (c *Cache) MarkReplied(locationID, reviewID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(locationID, reviewID), []byte{1}).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("reply cache write: %w", err)
	}
	return nil
}

// Count returns the number of replied reviews recorded for a location.
func (c *Cache) Count(locationID string) (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(repliedKeyPrefix + locationID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func key(locationID, reviewID string) []byte {
	return []byte(repliedKeyPrefix + locationID + "/" + reviewID)
}
