// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import "context"

// Product is a read-only catalog record. The engine never mutates products;
// it copies the fields it needs into Recommendation values.
type Product struct {
	// ID uniquely identifies the product within its shop.
	ID string `json:"id"`

	// Title is the customer-facing product name.
	Title string `json:"title"`

	// Handle is the URL slug for the product page.
	Handle string `json:"handle"`

	// Category groups related products (e.g. "jewelry").
	Category string `json:"category"`

	// Brand is the product vendor.
	Brand string `json:"brand"`

	// Price in the shop currency.
	Price float64 `json:"price"`

	// Tags are free-form merchant labels (material, color, style).
	Tags []string `json:"tags"`

	// Status is the catalog lifecycle state (e.g. "active").
	Status string `json:"status"`
}

// Candidate annotates a Product with per-request lexical matching state.
// Candidates are transient; they exist only for the duration of a single
// recommendation computation.
type Candidate struct {
	Product

	// SameType reports lexical title-token overlap with the reference tokens.
	SameType bool

	// TypeScore is the number of reference tokens found in the title.
	TypeScore int
}

// RecommendationType classifies why a product is being suggested.
type RecommendationType string

// Recommendation type values.
const (
	TypeComplementary RecommendationType = "complementary"
	TypeSimilar       RecommendationType = "similar"
	TypeUpgrade       RecommendationType = "upgrade"
	TypeBundle        RecommendationType = "bundle"
)

// Valid reports whether t is one of the known recommendation types.
func (t RecommendationType) Valid() bool {
	switch t {
	case TypeComplementary, TypeSimilar, TypeUpgrade, TypeBundle:
		return true
	}
	return false
}

// Source identifies which signal produced a recommendation.
type Source string

// Recommendation source values.
const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceTime     Source = "time"
	SourceCart     Source = "cart"
)

// Recommendation is the engine's output unit. Created fresh per request and
// never mutated after placement in a result list, except by the engagement
// booster which only adjusts Confidence and sets EngagementBoost.
type Recommendation struct {
	ProductID          string             `json:"productId"`
	Title              string             `json:"title"`
	Handle             string             `json:"handle"`
	Price              float64            `json:"price"`
	Reason             string             `json:"reason"`
	Confidence         float64            `json:"confidence"`
	RecommendationType RecommendationType `json:"recommendationType"`
	Source             Source             `json:"source,omitempty"`
	EngagementBoost    float64            `json:"engagementBoost,omitempty"`
}

// BrowsedProduct is one entry of a user's browsing-time profile.
type BrowsedProduct struct {
	ProductID        string `json:"productId"`
	Title            string `json:"title"`
	TotalTimeSeconds int64  `json:"totalTimeSeconds"`
}

// CartedProduct is one entry of a user's cart-history profile.
type CartedProduct struct {
	ProductID string `json:"productId"`
	Count     int    `json:"count"`
}

// UserProfile bundles the per-user personalization signals. It is derived
// fresh per request from the HistoryStore and never cached on its own; the
// recommendation cache entry is what gets reused.
type UserProfile struct {
	Browsed []BrowsedProduct
	Carted  []CartedProduct
}

// HasSignals reports whether the profile carries any personalization data.
func (p *UserProfile) HasSignals() bool {
	return p != nil && (len(p.Browsed) > 0 || len(p.Carted) > 0)
}

// EngagementStat is the 30-day aggregate used by the engagement booster.
type EngagementStat struct {
	AvgTimeSeconds float64
	Sessions       int
}

// Catalog is the read-only accessor over the product catalog. The engine
// resolves subjects and candidates from a single shop-wide fetch.
type Catalog interface {
	// ProductsByShop returns every product visible in the shop.
	ProductsByShop(ctx context.Context, shop string) ([]Product, error)
}

// HistoryStore serves per-user browsing and cart aggregates over a trailing
// 30-day window. Implementations are expected to be best-effort; the engine
// treats every error here as "no personalization" rather than failing the
// request.
type HistoryStore interface {
	// BrowsingProfile returns the user's top products by aggregate time
	// spent, at most 5 entries, descending.
	BrowsingProfile(ctx context.Context, shop, userID string) ([]BrowsedProduct, error)

	// CartHistory returns the user's most frequently carted products, at
	// most 8 entries, descending by distinct cart-session count.
	CartHistory(ctx context.Context, shop, userID string) ([]CartedProduct, error)

	// EngagementStats returns per-product average time spent and session
	// counts for the given ids.
	EngagementStats(ctx context.Context, shop string, productIDs []string) (map[string]EngagementStat, error)
}

// Generator is the remote text-generation call. A single request/response
// exchange; any transport, HTTP, or empty-content failure is returned as a
// *RemoteError.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
