// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"fmt"
	"time"
)

// Config holds the engine's tunable parameters. Use DefaultConfig as a
// baseline and override fields as needed.
type Config struct {
	// DefaultLimit is the recommendation count when the caller passes zero.
	DefaultLimit int

	// MaxLimit bounds the recommendation count a single request may ask for.
	MaxLimit int

	// CacheTTL is the maximum age of a cached recommendation list.
	CacheTTL time.Duration

	// CacheCapacity bounds the number of cached lists; the oldest-inserted
	// entry is evicted on overflow.
	CacheCapacity int

	// RemoteTimeout wraps each remote generation call. On expiry the call
	// is treated like any other remote failure and the fallback ranker runs.
	RemoteTimeout time.Duration

	// MaxPromptCandidates bounds how many candidates are rendered into the
	// prompt, keeping token usage predictable for large catalogs.
	MaxPromptCandidates int
}

// DefaultConfig returns the production default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        4,
		MaxLimit:            20,
		CacheTTL:            5 * time.Minute,
		CacheCapacity:       500,
		RemoteTimeout:       20 * time.Second,
		MaxPromptCandidates: 50,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max limit %d below default limit %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("remote timeout must be positive, got %s", c.RemoteTimeout)
	}
	if c.MaxPromptCandidates < 1 {
		return fmt.Errorf("max prompt candidates must be positive, got %d", c.MaxPromptCandidates)
	}
	return nil
}
