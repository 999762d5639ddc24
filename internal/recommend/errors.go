// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"fmt"
	"strings"
)

// RemoteError reports a failed remote text-generation call: transport error,
// non-2xx status, or empty content. Always recoverable; the engine substitutes
// the deterministic fallback ranker.
type RemoteError struct {
	// Op describes the failing operation (e.g. "chat completion").
	Op string

	// Err is the underlying cause, nil for conditions like empty content.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote generation: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote generation: %s", e.Op)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ParseError reports malformed or absent JSON in the model output. Treated
// identically to RemoteError by the engine: fall back, never propagate.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse model output: " + e.Reason
}

// SubjectNotFoundError reports that the viewed product, or every product of a
// cart, is missing from the catalog.
type SubjectNotFoundError struct {
	Shop       string
	ProductIDs []string
}

func (e *SubjectNotFoundError) Error() string {
	return fmt.Sprintf("subject product(s) %s not found in shop %s",
		strings.Join(e.ProductIDs, ","), e.Shop)
}
