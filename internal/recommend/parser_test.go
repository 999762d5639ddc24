// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func parserCandidates() []Candidate {
	return annotateCandidates([]Product{
		{ID: "101", Title: "Gold Bracelet", Handle: "gold-bracelet", Price: 49.99},
		{ID: "102", Title: "Silver Bracelet", Handle: "silver-bracelet", Price: 39.99},
		{ID: "103", Title: "Pearl Necklace", Handle: "pearl-necklace", Price: 59.99},
	}, []string{"bracelet"})
}

func TestParseModelResponseValidArray(t *testing.T) {
	t.Parallel()

	raw := `Here are my picks:
[
  {"productId": "102", "reason": "Matches the style", "confidence": 0.87, "recommendationType": "similar"},
  {"productId": "103", "reason": "Completes the set", "confidence": 0.7, "recommendationType": "complementary"}
]
Hope that helps!`

	recs, err := parseModelResponse(raw, parserCandidates(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].ProductID != "102" || recs[0].Confidence != 0.87 {
		t.Errorf("Unexpected first rec: %+v", recs[0])
	}
	if recs[0].Title != "Silver Bracelet" || recs[0].Price != 39.99 {
		t.Errorf("Expected catalog fields resolved, got %+v", recs[0])
	}
	if recs[1].RecommendationType != TypeComplementary {
		t.Errorf("Expected complementary, got %s", recs[1].RecommendationType)
	}
	for _, r := range recs {
		if r.Source != SourceModel {
			t.Errorf("Expected model source, got %s", r.Source)
		}
	}
}

func TestParseModelResponseNumericIDs(t *testing.T) {
	t.Parallel()

	raw := `[{"productId": 102, "reason": "ok", "confidence": 0.8, "recommendationType": "similar"}]`

	recs, err := parseModelResponse(raw, parserCandidates(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].ProductID != "102" {
		t.Fatalf("Expected numeric id normalized to string, got %+v", recs)
	}
}

func TestParseModelResponseTrailingBracketedProse(t *testing.T) {
	t.Parallel()

	raw := `[{"productId": "102", "reason": "ok", "confidence": 0.8, "recommendationType": "similar"}]
See [catalog] for more options.`

	recs, err := parseModelResponse(raw, parserCandidates(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].ProductID != "102" {
		t.Fatalf("Expected the first array parsed despite trailing brackets, got %+v", recs)
	}
}

func TestParseModelResponseNoArray(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"I cannot help with that.",
		"",
		"] [",
	} {
		_, err := parseModelResponse(raw, parserCandidates(), zerolog.Nop())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("Expected ParseError for %q, got %v", raw, err)
		}
	}
}

func TestParseModelResponseInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := parseModelResponse(`[{"productId": "102", broken]`, parserCandidates(), zerolog.Nop())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}

func TestParseModelResponseDropsUnknownAndDuplicates(t *testing.T) {
	t.Parallel()

	raw := `[
  {"productId": "999", "reason": "hallucinated", "confidence": 0.9, "recommendationType": "similar"},
  {"productId": "102", "reason": "first", "confidence": 0.8, "recommendationType": "similar"},
  {"productId": "102", "reason": "duplicate", "confidence": 0.7, "recommendationType": "similar"},
  {"productId": "", "reason": "missing id", "confidence": 0.6, "recommendationType": "similar"}
]`

	recs, err := parseModelResponse(raw, parserCandidates(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Reason != "first" {
		t.Errorf("Expected first occurrence kept, got %q", recs[0].Reason)
	}
}

func TestParseModelResponseSanitizesFields(t *testing.T) {
	t.Parallel()

	raw := `[
  {"productId": "101", "reason": "", "confidence": 1.7, "recommendationType": "bogus"},
  {"productId": "102", "reason": "ok", "confidence": -0.3, "recommendationType": "upgrade"}
]`

	recs, err := parseModelResponse(raw, parserCandidates(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].Confidence != 1.0 {
		t.Errorf("Expected confidence clamped to 1, got %v", recs[0].Confidence)
	}
	if recs[0].RecommendationType != TypeSimilar {
		t.Errorf("Expected invalid type replaced with similar, got %s", recs[0].RecommendationType)
	}
	if recs[0].Reason != "Recommended for you" {
		t.Errorf("Expected default reason, got %q", recs[0].Reason)
	}
	if recs[1].Confidence != 0 {
		t.Errorf("Expected confidence clamped to 0, got %v", recs[1].Confidence)
	}
}

func TestExtractJSONArray(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "bare array", raw: `[1,2]`, want: `[1,2]`, ok: true},
		{name: "markdown fenced", raw: "```json\n[1]\n```", want: `[1]`, ok: true},
		{name: "prose wrapped", raw: `sure: [1] done`, want: `[1]`, ok: true},
		{name: "trailing bracketed prose", raw: `[1,2] see [docs]`, want: `[1,2]`, ok: true},
		{name: "nested arrays", raw: `x [[1],[2]] y`, want: `[[1],[2]]`, ok: true},
		{name: "bracket inside string", raw: `[{"reason": "pairs [well]"}] tail`, want: `[{"reason": "pairs [well]"}]`, ok: true},
		{name: "escaped quote inside string", raw: `[{"reason": "a \" ] b"}]`, want: `[{"reason": "a \" ] b"}]`, ok: true},
		{name: "no array", raw: `nothing here`, ok: false},
		{name: "reversed brackets", raw: `] [`, ok: false},
		{name: "unterminated array", raw: `[1, 2`, ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := extractJSONArray(tt.raw)
			if ok != tt.ok {
				t.Fatalf("extractJSONArray(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("extractJSONArray(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
