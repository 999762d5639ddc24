// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// flexID decodes a product id that may arrive as a JSON number or string.
// Models alternate between the two; both normalize to the catalog's string
// form. Undecodable values become empty rather than failing the array.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	*f = ""
	return nil
}

// modelPick is the raw shape expected inside the model's JSON array.
type modelPick struct {
	ProductID          flexID  `json:"productId"`
	Reason             string  `json:"reason"`
	Confidence         float64 `json:"confidence"`
	RecommendationType string  `json:"recommendationType"`
}

// extractJSONArray returns the first balanced [...] substring of the raw
// model response. Models routinely wrap the array in prose or markdown
// fences, sometimes with bracketed text after it, so the scan stops at the
// bracket that closes the first array rather than the last bracket in the
// text. Brackets inside JSON strings do not count toward nesting.
func extractJSONArray(raw string) (string, bool) {
	start := strings.Index(raw, "[")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// parseModelResponse turns raw model output into resolved recommendations.
//
// The raw text is an untrusted boundary: the first JSON array is extracted
// and decoded, every field is validated, and each referenced product id is
// resolved against the candidate set. Unresolvable or malformed entries are
// dropped with a warning, never fatal. A *ParseError is returned only when
// no decodable array exists at all.
func parseModelResponse(raw string, candidates []Candidate, logger zerolog.Logger) ([]Recommendation, error) {
	arr, ok := extractJSONArray(raw)
	if !ok {
		return nil, &ParseError{Reason: "no JSON array in response"}
	}

	var picks []modelPick
	if err := json.Unmarshal([]byte(arr), &picks); err != nil {
		return nil, &ParseError{Reason: "invalid JSON array: " + err.Error()}
	}

	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	recs := make([]Recommendation, 0, len(picks))
	seen := make(map[string]struct{}, len(picks))
	for _, pick := range picks {
		id := string(pick.ProductID)
		if id == "" {
			logger.Warn().Str("reason", pick.Reason).Msg("model pick without product id dropped")
			continue
		}
		cand, found := byID[id]
		if !found {
			logger.Warn().Str("product_id", id).Msg("model referenced unknown candidate, dropped")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		confidence := clampConfidence(pick.Confidence)
		recType := RecommendationType(pick.RecommendationType)
		if !recType.Valid() {
			recType = TypeSimilar
		}
		reason := strings.TrimSpace(pick.Reason)
		if reason == "" {
			reason = "Recommended for you"
		}

		recs = append(recs, Recommendation{
			ProductID:          cand.ID,
			Title:              cand.Title,
			Handle:             cand.Handle,
			Price:              cand.Price,
			Reason:             reason,
			Confidence:         confidence,
			RecommendationType: recType,
			Source:             SourceModel,
		})
	}

	return recs, nil
}

// clampConfidence bounds a confidence value to [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
