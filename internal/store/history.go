// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/merchware/upsell/internal/metrics"
	"github.com/merchware/upsell/internal/recommend"
)

// Aggregation limits for the personalization profiles.
const (
	browseTop = 5
	cartTop   = 8
)

// History serves per-user browsing and cart aggregates over a trailing
// 30-day window. Implements recommend.HistoryStore.
type History struct {
	db *DB
}

// NewHistory builds a history accessor over the shared pool.
func NewHistory(db *DB) *History {
	return &History{db: db}
}

// BrowsingProfile returns the user's top 5 products by aggregate time spent
// in the last 30 days, descending.
func (h *History) BrowsingProfile(ctx context.Context, shop, userID string) ([]recommend.BrowsedProduct, error) {
	start := time.Now()
	rows, err := h.db.Pool.Query(ctx,
		`SELECT s.product_id, COALESCE(p.title, ''), SUM(s.duration_seconds) AS total
		 FROM browsing_sessions s
		 LEFT JOIN products p ON p.shop = s.shop AND p.id = s.product_id
		 WHERE s.shop = $1 AND s.user_id = $2 AND s.created_at > now() - interval '30 days'
		 GROUP BY s.product_id, p.title
		 ORDER BY total DESC
		 LIMIT $3`,
		shop, userID, browseTop)
	metrics.RecordDBQuery("browsing_profile", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query browsing profile: %w", err)
	}
	defer rows.Close()

	var profile []recommend.BrowsedProduct
	for rows.Next() {
		var bp recommend.BrowsedProduct
		if err := rows.Scan(&bp.ProductID, &bp.Title, &bp.TotalTimeSeconds); err != nil {
			return nil, fmt.Errorf("scan browsing row: %w", err)
		}
		profile = append(profile, bp)
	}
	return profile, rows.Err()
}

// CartHistory returns the user's top 8 products by distinct cart sessions
// in the last 30 days, descending.
func (h *History) CartHistory(ctx context.Context, shop, userID string) ([]recommend.CartedProduct, error) {
	start := time.Now()
	rows, err := h.db.Pool.Query(ctx,
		`SELECT product_id, COUNT(DISTINCT cart_session_id) AS cnt
		 FROM cart_sessions
		 WHERE shop = $1 AND user_id = $2 AND created_at > now() - interval '30 days'
		 GROUP BY product_id
		 ORDER BY cnt DESC
		 LIMIT $3`,
		shop, userID, cartTop)
	metrics.RecordDBQuery("cart_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query cart history: %w", err)
	}
	defer rows.Close()

	var profile []recommend.CartedProduct
	for rows.Next() {
		var cp recommend.CartedProduct
		if err := rows.Scan(&cp.ProductID, &cp.Count); err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		profile = append(profile, cp)
	}
	return profile, rows.Err()
}

// EngagementStats returns the 30-day average time spent and session count
// per product for the given ids, across all users.
func (h *History) EngagementStats(ctx context.Context, shop string, productIDs []string) (map[string]recommend.EngagementStat, error) {
	if len(productIDs) == 0 {
		return map[string]recommend.EngagementStat{}, nil
	}

	start := time.Now()
	rows, err := h.db.Pool.Query(ctx,
		`SELECT product_id, AVG(duration_seconds), COUNT(*)
		 FROM browsing_sessions
		 WHERE shop = $1 AND product_id = ANY($2) AND created_at > now() - interval '30 days'
		 GROUP BY product_id`,
		shop, productIDs)
	metrics.RecordDBQuery("engagement_stats", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query engagement stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]recommend.EngagementStat, len(productIDs))
	for rows.Next() {
		var id string
		var stat recommend.EngagementStat
		if err := rows.Scan(&id, &stat.AvgTimeSeconds, &stat.Sessions); err != nil {
			return nil, fmt.Errorf("scan engagement row: %w", err)
		}
		stats[id] = stat
	}
	return stats, rows.Err()
}

// RecordBrowsingSession stores one tracked time-on-product session. Called
// by the tracking ingest endpoint.
func (h *History) RecordBrowsingSession(ctx context.Context, shop, userID, productID string, durationSeconds int64) error {
	start := time.Now()
	_, err := h.db.Pool.Exec(ctx,
		`INSERT INTO browsing_sessions (shop, user_id, product_id, duration_seconds)
		 VALUES ($1, $2, $3, $4)`,
		shop, userID, productID, durationSeconds)
	metrics.RecordDBQuery("record_browsing_session", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert browsing session: %w", err)
	}
	return nil
}

// RecordCartSession stores one cart-membership observation.
func (h *History) RecordCartSession(ctx context.Context, shop, userID, productID, cartSessionID string) error {
	start := time.Now()
	_, err := h.db.Pool.Exec(ctx,
		`INSERT INTO cart_sessions (shop, user_id, product_id, cart_session_id)
		 VALUES ($1, $2, $3, $4)`,
		shop, userID, productID, cartSessionID)
	metrics.RecordDBQuery("record_cart_session", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert cart session: %w", err)
	}
	return nil
}
