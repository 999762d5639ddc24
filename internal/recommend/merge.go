// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import "sort"

// History merge. Blends the ranked list with guaranteed slots for the
// user's top browsing-history and cart-history items, preserving order and
// uniqueness, never exceeding the requested count.

// Reasons and confidences for history-sourced entries.
const (
	historyBrowseReason     = "Based on products you've spent time exploring"
	historyBrowseConfidence = 0.8

	historyCartReason     = "You've added this to your cart before"
	historyCartConfidence = 0.75
)

// historyItem is one entry of the combined history pool, scored by its own
// signal strength (seconds browsed or cart frequency).
type historyItem struct {
	rec   Recommendation
	score float64
}

// historyPool resolves the profile against the candidate set and returns
// the combined pool sorted descending by score. Browsing entries come first
// within the pre-sort slice so equal scores favor the browse signal.
// History items not present among the candidates (already purchased subject,
// delisted products) are skipped.
func historyPool(profile *UserProfile, byID map[string]Product) (pool []historyItem, firstBrowse, firstCart int) {
	firstBrowse, firstCart = -1, -1
	if profile == nil {
		return nil, firstBrowse, firstCart
	}

	for _, bp := range profile.Browsed {
		p, ok := byID[bp.ProductID]
		if !ok {
			continue
		}
		rec := Recommendation{
			ProductID:          p.ID,
			Title:              p.Title,
			Handle:             p.Handle,
			Price:              p.Price,
			Reason:             historyBrowseReason,
			Confidence:         historyBrowseConfidence,
			RecommendationType: TypeSimilar,
			Source:             SourceTime,
		}
		if firstBrowse < 0 {
			firstBrowse = len(pool)
		}
		pool = append(pool, historyItem{rec: rec, score: float64(bp.TotalTimeSeconds)})
	}

	for _, cp := range profile.Carted {
		p, ok := byID[cp.ProductID]
		if !ok {
			continue
		}
		rec := Recommendation{
			ProductID:          p.ID,
			Title:              p.Title,
			Handle:             p.Handle,
			Price:              p.Price,
			Reason:             historyCartReason,
			Confidence:         historyCartConfidence,
			RecommendationType: TypeComplementary,
			Source:             SourceCart,
		}
		if firstCart < 0 {
			firstCart = len(pool)
		}
		pool = append(pool, historyItem{rec: rec, score: float64(cp.Count)})
	}

	return pool, firstBrowse, firstCart
}

// mergeHistory blends ranked output with the user's history signals.
//
// Slot policy: the user's single top browsing item and single top cart item
// are each guaranteed a slot when available and not already present. The
// combined history pool then fills up to floor(limit/2) slots, descending by
// its own score. Remaining slots come from the ranked list in its original
// order, with any leftover history topping up a rare final shortfall.
func mergeHistory(ranked []Recommendation, profile *UserProfile, byID map[string]Product, limit int) []Recommendation {
	if limit <= 0 {
		return nil
	}
	pool, firstBrowse, firstCart := historyPool(profile, byID)
	if len(pool) == 0 {
		if len(ranked) > limit {
			return ranked[:limit]
		}
		return ranked
	}

	result := make([]Recommendation, 0, limit)
	used := make(map[string]struct{}, limit)

	add := func(r Recommendation) {
		if len(result) >= limit {
			return
		}
		if _, dup := used[r.ProductID]; dup {
			return
		}
		used[r.ProductID] = struct{}{}
		result = append(result, r)
	}

	// Guaranteed slots: top browse item, then top cart item.
	if firstBrowse >= 0 {
		add(pool[firstBrowse].rec)
	}
	if firstCart >= 0 {
		add(pool[firstCart].rec)
	}

	// Fill history slots up to floor(limit/2) from the pool by score.
	sorted := make([]historyItem, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})
	historyBudget := limit / 2
	for _, item := range sorted {
		if len(result) >= historyBudget {
			break
		}
		add(item.rec)
	}

	// Remaining slots from the ranked list in its original order.
	for _, r := range ranked {
		if len(result) >= limit {
			break
		}
		add(r)
	}

	// Rare shortfall: top up from leftover history items.
	for _, item := range sorted {
		if len(result) >= limit {
			break
		}
		add(item.rec)
	}

	return result
}
