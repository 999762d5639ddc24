// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"math"
	"sort"
	"strings"
)

// Deterministic fallback ranking. No remote call, no persistent state; a
// pure function of the catalog snapshot. Used whenever the remote model
// fails, returns zero usable recommendations, or is unconfigured.

// Similarity weights.
const (
	simCategoryWeight = 40
	simBrandWeight    = 25
	simColorWeight    = 15
	simKeywordWeight  = 5
	simKeywordCap     = 20
)

// Last-resort tier, used when the subject itself is missing from the catalog.
const (
	lastResortReason     = "You might also like this product"
	lastResortConfidence = 0.5
)

// knownColors are the color words recognized in product tags and titles.
var knownColors = []string{
	"black", "white", "red", "blue", "green", "gold", "silver",
	"brown", "pink", "purple", "yellow", "orange", "grey", "gray",
	"beige", "navy",
}

// colorOf extracts the first recognized color from a product's tags, then
// its title. Empty when no color attribute is present.
func colorOf(p *Product) string {
	for _, tag := range p.Tags {
		lower := strings.ToLower(tag)
		for _, c := range knownColors {
			if lower == c {
				return c
			}
		}
	}
	lower := strings.ToLower(p.Title)
	for _, c := range knownColors {
		if strings.Contains(lower, c) {
			return c
		}
	}
	return ""
}

// keywords returns the lowercased keyword set of a product: title tokens
// plus tags.
func keywords(p *Product) map[string]struct{} {
	kw := make(map[string]struct{})
	for _, tok := range Tokenize(p.Title) {
		kw[tok] = struct{}{}
	}
	for _, tag := range p.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			kw[tag] = struct{}{}
		}
	}
	return kw
}

// similarityScore computes the weighted attribute-overlap score between two
// products: +40 equal categories (both non-empty), +25 equal brands, +15
// equal colors (when both carry one), +5 per shared keyword capped at +20.
func similarityScore(a, b *Product) int {
	score := 0

	if a.Category != "" && strings.EqualFold(a.Category, b.Category) {
		score += simCategoryWeight
	}
	if a.Brand != "" && strings.EqualFold(a.Brand, b.Brand) {
		score += simBrandWeight
	}
	if ca, cb := colorOf(a), colorOf(b); ca != "" && ca == cb {
		score += simColorWeight
	}

	kb := keywords(b)
	overlap := 0
	for kw := range keywords(a) {
		if _, ok := kb[kw]; ok {
			overlap++
		}
	}
	score += min(simKeywordWeight*overlap, simKeywordCap)

	return score
}

// scoredProduct pairs a candidate with its similarity score for ranking.
type scoredProduct struct {
	product Product
	score   float64
}

// rankBySimilarity sorts candidates descending by score, breaking ties by
// stable input order.
func rankBySimilarity(scored []scoredProduct) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
}

// fallbackForProduct ranks all other shop products by similarity to the
// subject. Confidence is score/100. When the subject is missing the last
// resort applies: the first limit shop products at a flat 0.5.
func fallbackForProduct(subject *Product, shopProducts []Product, excluded map[string]struct{}, limit int) []Recommendation {
	if limit <= 0 {
		return nil
	}
	if subject == nil {
		return lastResort(shopProducts, excluded, limit)
	}

	scored := make([]scoredProduct, 0, len(shopProducts))
	for _, p := range shopProducts {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		scored = append(scored, scoredProduct{
			product: p,
			score:   float64(similarityScore(subject, &p)),
		})
	}
	rankBySimilarity(scored)

	recs := make([]Recommendation, 0, limit)
	for _, sp := range scored {
		if len(recs) >= limit {
			break
		}
		recs = append(recs, fallbackRecommendation(sp.product, sp.score/100, fallbackReason(&sp.product, subject)))
	}
	return recs
}

// fallbackForCart averages each candidate's similarity against every cart
// item. Confidence is min(score/100, 0.9), capped because an average across
// heterogeneous cart items is a weaker signal than a direct match.
func fallbackForCart(cartItems []Product, shopProducts []Product, excluded map[string]struct{}, limit int) []Recommendation {
	if limit <= 0 {
		return nil
	}
	if len(cartItems) == 0 {
		return lastResort(shopProducts, excluded, limit)
	}

	scored := make([]scoredProduct, 0, len(shopProducts))
	for _, p := range shopProducts {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		total := 0
		for i := range cartItems {
			total += similarityScore(&cartItems[i], &p)
		}
		scored = append(scored, scoredProduct{
			product: p,
			score:   float64(total) / float64(len(cartItems)),
		})
	}
	rankBySimilarity(scored)

	recs := make([]Recommendation, 0, limit)
	for _, sp := range scored {
		if len(recs) >= limit {
			break
		}
		confidence := math.Min(sp.score/100, 0.9)
		recs = append(recs, fallbackRecommendation(sp.product, confidence, "Pairs well with the items in your cart"))
	}
	return recs
}

// lastResort returns the first limit shop products at a flat confidence.
// This tier must never fail: it is what keeps the count contract alive when
// even the subject lookup has broken down.
func lastResort(shopProducts []Product, excluded map[string]struct{}, limit int) []Recommendation {
	recs := make([]Recommendation, 0, limit)
	for _, p := range shopProducts {
		if len(recs) >= limit {
			break
		}
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		recs = append(recs, fallbackRecommendation(p, lastResortConfidence, lastResortReason))
	}
	return recs
}

// fallbackReason names the strongest matching attribute for display.
func fallbackReason(candidate, subject *Product) string {
	switch {
	case subject.Category != "" && strings.EqualFold(subject.Category, candidate.Category):
		return "From the same category as the product you're viewing"
	case subject.Brand != "" && strings.EqualFold(subject.Brand, candidate.Brand):
		return "More from this brand"
	default:
		return "You might also like"
	}
}

// fallbackRecommendation builds one deterministic-ranker output entry.
func fallbackRecommendation(p Product, confidence float64, reason string) Recommendation {
	return Recommendation{
		ProductID:          p.ID,
		Title:              p.Title,
		Handle:             p.Handle,
		Price:              p.Price,
		Reason:             reason,
		Confidence:         round4(clampConfidence(confidence)),
		RecommendationType: TypeSimilar,
		Source:             SourceFallback,
	}
}
