// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import "strings"

// stopwords excludes words that carry no product-type signal: articles,
// prepositions, possessives, common fillers. Tokens shorter than three
// letters are filtered before this set is consulted.
var stopwords = map[string]struct{}{
	"the":   {},
	"and":   {},
	"for":   {},
	"with":  {},
	"from":  {},
	"over":  {},
	"under": {},
	"your":  {},
	"our":   {},
	"their": {},
	"his":   {},
	"her":   {},
	"its":   {},
	"this":  {},
	"that":  {},
	"these": {},
	"those": {},
	"into":  {},
	"onto":  {},
	"per":   {},
}

// isTokenSeparator matches the characters product titles use to join words.
func isTokenSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '-', '_', '/':
		return true
	}
	return false
}

// Tokenize extracts the meaningful words of a product title: lowercase,
// split on whitespace, hyphen, underscore, and slash, strip non-letter
// characters, keep tokens of length >= 3 that are not stopwords. The result
// is deduplicated, preserving first-occurrence order.
func Tokenize(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), isTokenSeparator)

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if r >= 'a' && r <= 'z' {
				b.WriteRune(r)
			}
		}
		tok := b.String()
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TypeScore counts how many reference tokens appear as substrings of the
// lowercased candidate title. A score above zero marks the candidate as
// same-type relative to the reference.
func TypeScore(referenceTokens []string, candidateTitle string) int {
	if len(referenceTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(candidateTitle)
	score := 0
	for _, tok := range referenceTokens {
		if strings.Contains(lower, tok) {
			score++
		}
	}
	return score
}

// annotateCandidates wraps products as candidates scored against the
// reference tokens. With zero reference tokens every candidate is marked
// same-type false and type filtering is skipped downstream.
func annotateCandidates(products []Product, referenceTokens []string) []Candidate {
	candidates := make([]Candidate, 0, len(products))
	for _, p := range products {
		score := TypeScore(referenceTokens, p.Title)
		candidates = append(candidates, Candidate{
			Product:   p,
			TypeScore: score,
			SameType:  score > 0,
		})
	}
	return candidates
}
