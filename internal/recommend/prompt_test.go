// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"strings"
	"testing"
)

func promptSubject() *Product {
	return &Product{ID: "101", Title: "Gold Bracelet", Category: "jewelry", Brand: "Lumina", Price: 49.99}
}

func TestPromptCandidatesOrder(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Product: Product{ID: "a"}, TypeScore: 0},
		{Product: Product{ID: "b"}, TypeScore: 2, SameType: true},
		{Product: Product{ID: "c"}, TypeScore: 1, SameType: true},
		{Product: Product{ID: "d"}, TypeScore: 0},
	}

	ordered := promptCandidates(candidates)
	wantOrder := []string{"b", "c", "a", "d"}
	for i, want := range wantOrder {
		if ordered[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, ordered[i].ID)
		}
	}

	// The input slice is untouched.
	if candidates[0].ID != "a" {
		t.Error("Expected input order preserved")
	}
}

func TestBuildProductPromptWithoutProfile(t *testing.T) {
	t.Parallel()

	candidates := annotateCandidates([]Product{
		{ID: "102", Title: "Silver Bracelet", Category: "jewelry", Brand: "Lumina", Price: 39.99},
		{ID: "104", Title: "Leather Wallet", Category: "accessories", Brand: "Hidecraft", Price: 29.99},
	}, []string{"bracelet"})

	prompt := buildProductPrompt(promptSubject(), candidates, &UserProfile{}, 3)

	for _, want := range []string{
		"A customer is viewing: Gold Bracelet",
		"id=102",
		"same-type",
		"id=104",
		"other-type",
		"Prefer candidates labeled same-type",
		"JSON array",
		"recommendationType",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}

	// Same-type candidates are listed before other-type ones.
	if strings.Index(prompt, "id=102") > strings.Index(prompt, "id=104") {
		t.Error("Expected same-type candidate listed first")
	}
}

func TestBuildProductPromptWithProfile(t *testing.T) {
	t.Parallel()

	candidates := annotateCandidates([]Product{
		{ID: "102", Title: "Silver Bracelet"},
	}, []string{"bracelet"})
	profile := &UserProfile{
		Browsed: []BrowsedProduct{{ProductID: "103", Title: "Pearl Necklace", TotalTimeSeconds: 180}},
		Carted:  []CartedProduct{{ProductID: "104", Count: 2}},
	}

	prompt := buildProductPrompt(promptSubject(), candidates, profile, 4)

	for _, want := range []string{
		"Customer signals from the last 30 days",
		"browsed id=103 (Pearl Necklace) for 180s total",
		"carted id=104 2 times",
		"Allocate roughly 2 picks",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildCartPrompt(t *testing.T) {
	t.Parallel()

	cartItems := []Product{
		{ID: "101", Title: "Gold Bracelet", Category: "jewelry", Brand: "Lumina", Price: 49.99},
		{ID: "103", Title: "Pearl Necklace", Category: "jewelry", Brand: "Aurelle", Price: 59.99},
	}
	candidates := annotateCandidates([]Product{
		{ID: "102", Title: "Silver Bracelet"},
	}, []string{"bracelet", "necklace"})

	prompt := buildCartPrompt(cartItems, candidates, &UserProfile{}, 2)

	for _, want := range []string{
		"items in their cart",
		"Gold Bracelet",
		"Pearl Necklace",
		"spreading picks across the distinct",
		"Select the 2 best upsell products",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
}
