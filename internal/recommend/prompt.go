// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt construction. Four deterministic variants are produced:
// {single-product, cart} x {with-profile, without-profile}. Candidates are
// listed same-type first so the model sees the strongest matches early, and
// every line is labeled so the model can honor the type constraints.

// promptCandidates orders candidates for prompt rendering: same-type first
// (higher type score first), then the rest in stable input order.
func promptCandidates(candidates []Candidate) []Candidate {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TypeScore > ordered[j].TypeScore
	})
	return ordered
}

// renderCandidateList writes one line per candidate in the fixed format the
// response parser expects the model to reference ids from.
func renderCandidateList(b *strings.Builder, candidates []Candidate) {
	for _, c := range candidates {
		label := "other-type"
		if c.SameType {
			label = "same-type"
		}
		fmt.Fprintf(b, "- id=%s | %s | category=%s | brand=%s | price=%.2f | %s\n",
			c.ID, c.Title, c.Category, c.Brand, c.Price, label)
	}
}

// renderAnswerShape appends the fixed instruction describing the required
// structured answer.
func renderAnswerShape(b *strings.Builder, limit int) {
	fmt.Fprintf(b, "\nAnswer with a JSON array of exactly up to %d objects and nothing else.\n", limit)
	b.WriteString("Each object must have this shape:\n")
	b.WriteString(`[{"productId": "...", "reason": "...", "confidence": 0.0, "recommendationType": "complementary|similar|upgrade|bundle"}]` + "\n")
	b.WriteString("Use only productId values from the candidate list. Confidence is between 0 and 1.\n")
}

// buildProductPrompt renders the single-product prompt variant.
func buildProductPrompt(subject *Product, candidates []Candidate, profile *UserProfile, limit int) string {
	var b strings.Builder

	b.WriteString("You are a product recommendation assistant for an e-commerce store.\n")
	fmt.Fprintf(&b, "A customer is viewing: %s (category=%s, brand=%s, price=%.2f).\n",
		subject.Title, subject.Category, subject.Brand, subject.Price)
	fmt.Fprintf(&b, "Select the %d best upsell products from these candidates:\n", limit)
	renderCandidateList(&b, promptCandidates(candidates))

	if profile.HasSignals() {
		renderProfile(&b, profile)
		half := limit / 2
		fmt.Fprintf(&b, "\nAllocate roughly %d picks to candidates matching the viewed product's type, "+
			"and the remaining %d to candidates relating to the customer's browsing or cart history. "+
			"Cross-type picks are allowed when the history supports them.\n", limit-half, half)
	} else {
		b.WriteString("\nPrefer candidates labeled same-type. If same-type candidates run out, " +
			"use candidates from the same category, then any remaining candidate, so the full " +
			"count is always reached.\n")
	}

	renderAnswerShape(&b, limit)
	return b.String()
}

// buildCartPrompt renders the cart prompt variant. The type signal is the
// union of tokens from all cart item titles; the instruction asks the model
// to spread picks proportionally across the distinct types in the cart.
func buildCartPrompt(cartItems []Product, candidates []Candidate, profile *UserProfile, limit int) string {
	var b strings.Builder

	b.WriteString("You are a product recommendation assistant for an e-commerce store.\n")
	b.WriteString("A customer has these items in their cart:\n")
	for _, p := range cartItems {
		fmt.Fprintf(&b, "- %s (category=%s, brand=%s, price=%.2f)\n", p.Title, p.Category, p.Brand, p.Price)
	}
	fmt.Fprintf(&b, "Select the %d best upsell products from these candidates:\n", limit)
	renderCandidateList(&b, promptCandidates(candidates))

	if profile.HasSignals() {
		renderProfile(&b, profile)
		half := limit / 2
		fmt.Fprintf(&b, "\nAllocate roughly %d picks to candidates matching the cart item types, "+
			"and the remaining %d to candidates relating to the customer's browsing or cart history. "+
			"Cross-type picks are allowed when the history supports them.\n", limit-half, half)
	} else {
		b.WriteString("\nPrefer candidates labeled same-type, spreading picks across the distinct " +
			"product types present in the cart. If same-type candidates run out, use candidates " +
			"from the same categories, then any remaining candidate, so the full count is always " +
			"reached.\n")
	}

	renderAnswerShape(&b, limit)
	return b.String()
}

// renderProfile appends the personalization block shared by both with-profile
// variants.
func renderProfile(b *strings.Builder, profile *UserProfile) {
	b.WriteString("\nCustomer signals from the last 30 days:\n")
	for _, bp := range profile.Browsed {
		fmt.Fprintf(b, "- browsed id=%s (%s) for %ds total\n", bp.ProductID, bp.Title, bp.TotalTimeSeconds)
	}
	for _, cp := range profile.Carted {
		fmt.Fprintf(b, "- carted id=%s %d times\n", cp.ProductID, cp.Count)
	}
}
