// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

// Ranking and padding. Tie-break policy across tiers: prefer signals closest
// to the model's own judgement before falling back to blunter heuristics.
//
//	tier 0: parsed model output (type-filtered when no profile exists)
//	tier 1: parsed-but-filtered-out model output
//	tier 2: lexical same-type candidates not yet used (confidence 0.65)
//	tier 3: any remaining candidate (confidence 0.5)

// Synthetic reasons and confidences for the padding tiers.
const (
	tierSameTypeReason     = "Similar product you might like"
	tierSameTypeConfidence = 0.65

	tierAnyReason     = "You might also like"
	tierAnyConfidence = 0.5
)

// rankAndPad applies the type filter and padding tiers to parsed model
// output and truncates to limit.
//
// Without a profile, only same-type parsed results are kept; if that filter
// empties the set entirely, the unfiltered parsed results are restored. With
// a profile the filter is skipped, since the prompt explicitly asked the
// model to mix types. When the reference tokens are empty no candidate is
// marked same-type, so filtering degenerates to accepting everything, which
// is the documented behavior for all-stopword titles.
func rankAndPad(parsed []Recommendation, candidates []Candidate, hasProfile bool, limit int) []Recommendation {
	if limit <= 0 {
		return nil
	}

	sameType := make(map[string]bool, len(candidates))
	anyTyped := false
	for _, c := range candidates {
		sameType[c.ID] = c.SameType
		if c.SameType {
			anyTyped = true
		}
	}

	kept := parsed
	var filteredOut []Recommendation
	if !hasProfile && anyTyped {
		kept = make([]Recommendation, 0, len(parsed))
		for _, r := range parsed {
			if sameType[r.ProductID] {
				kept = append(kept, r)
			} else {
				filteredOut = append(filteredOut, r)
			}
		}
		if len(kept) == 0 {
			kept = parsed
			filteredOut = nil
		}
	}

	result := make([]Recommendation, 0, limit)
	used := make(map[string]struct{}, limit)

	appendRec := func(r Recommendation) bool {
		if len(result) >= limit {
			return false
		}
		if _, dup := used[r.ProductID]; dup {
			return true
		}
		used[r.ProductID] = struct{}{}
		result = append(result, r)
		return true
	}

	for _, r := range kept {
		if !appendRec(r) {
			break
		}
	}

	// Tier 1: model picks that the type filter removed.
	for _, r := range filteredOut {
		if len(result) >= limit {
			break
		}
		appendRec(r)
	}

	// Tier 2: unused same-type candidates with a synthetic reason.
	for _, c := range candidates {
		if len(result) >= limit {
			break
		}
		if !c.SameType {
			continue
		}
		appendRec(syntheticRecommendation(c.Product, tierSameTypeReason, tierSameTypeConfidence, TypeSimilar))
	}

	// Tier 3: anything left in the shop.
	for _, c := range candidates {
		if len(result) >= limit {
			break
		}
		appendRec(syntheticRecommendation(c.Product, tierAnyReason, tierAnyConfidence, TypeSimilar))
	}

	return result
}

// syntheticRecommendation builds a padding entry from a catalog product.
func syntheticRecommendation(p Product, reason string, confidence float64, recType RecommendationType) Recommendation {
	return Recommendation{
		ProductID:          p.ID,
		Title:              p.Title,
		Handle:             p.Handle,
		Price:              p.Price,
		Reason:             reason,
		Confidence:         confidence,
		RecommendationType: recType,
		Source:             SourceFallback,
	}
}
