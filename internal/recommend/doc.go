// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package recommend implements the upsell recommendation engine.
//
// The engine combines a remote text-generation call with deterministic
// fallback ranking, per-user personalization signals, and a confidence-based
// re-ranking pass. Given a viewed product (or a cart of products) plus an
// optional user identity, it produces an ordered, deduplicated list of
// candidate products with reasons and confidence scores, guaranteeing up to
// the requested count even when the remote model fails, returns malformed
// output, or returns too few usable results.
//
// Pipeline per request:
//
//	cache check -> concurrent fetch (candidates, browsing profile, cart profile)
//	-> prompt -> remote call -> parse -> rank & pad
//	   (any failure substitutes the deterministic fallback ranker)
//	-> history merge -> engagement boost -> cache store
//
// Collaborators (Catalog, HistoryStore, Generator) are injected interfaces so
// every path, including the failure paths, is testable with fakes.
package recommend
