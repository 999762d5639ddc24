// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"context"
	"math"
	"sort"

	"github.com/merchware/upsell/internal/logging"
)

// Engagement boosting. A monotonic re-ranking pass: confidences can only
// rise, the set of products never changes, and the list is re-sorted
// descending by the boosted confidence.

const (
	// boostTimeCapSeconds caps the average-time signal.
	boostTimeCapSeconds = 300

	// boostMax is the largest confidence bonus a product can earn.
	boostMax = 0.15

	// boostMinSessions is the minimum tracked sessions before any bonus
	// applies; below it the signal is too noisy to trust.
	boostMinSessions = 2
)

// engagementBonus computes the confidence bonus for one product's stats.
func engagementBonus(stat EngagementStat) float64 {
	if stat.Sessions < boostMinSessions {
		return 0
	}
	return math.Min(stat.AvgTimeSeconds, boostTimeCapSeconds) / boostTimeCapSeconds * boostMax
}

// round4 rounds to 4 decimal places.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// boostByEngagement re-scores recommendations using 30-day per-product
// engagement statistics. Non-critical: any stats failure leaves the input
// list unchanged.
func (e *Engine) boostByEngagement(ctx context.Context, shop string, recs []Recommendation) []Recommendation {
	if len(recs) == 0 {
		return recs
	}

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ProductID)
	}

	stats, err := e.history.EngagementStats(ctx, shop, ids)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("shop", shop).
			Msg("engagement stats unavailable, skipping boost")
		return recs
	}

	boosted := make([]Recommendation, len(recs))
	copy(boosted, recs)
	for i := range boosted {
		stat, ok := stats[boosted[i].ProductID]
		if !ok {
			continue
		}
		bonus := engagementBonus(stat)
		if bonus == 0 {
			continue
		}
		boosted[i].EngagementBoost = round4(bonus)
		boosted[i].Confidence = round4(math.Min(boosted[i].Confidence+bonus, 1.0))
	}

	sort.SliceStable(boosted, func(i, j int) bool {
		return boosted[i].Confidence > boosted[j].Confidence
	})
	return boosted
}
