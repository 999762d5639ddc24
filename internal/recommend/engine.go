// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/merchware/upsell/internal/cache"
	"github.com/merchware/upsell/internal/logging"
	"github.com/merchware/upsell/internal/metrics"
)

// anonUser is the cache-key sentinel for requests without a user identity.
const anonUser = "anon"

// Engine coordinates the full recommendation pipeline. All collaborators
// are injected; the engine holds no state beyond its cache and counters and
// is safe for concurrent use.
type Engine struct {
	cfg       Config
	catalog   Catalog
	history   HistoryStore
	generator Generator // nil when no remote model is configured
	cache     *cache.Cache[[]Recommendation]
	logger    zerolog.Logger

	requests  atomic.Int64
	modelWins atomic.Int64
	fallbacks atomic.Int64
}

// Status is a snapshot of the engine's runtime counters.
type Status struct {
	Requests     int64       `json:"requests"`
	ModelWins    int64       `json:"modelWins"`
	Fallbacks    int64       `json:"fallbacks"`
	ModelEnabled bool        `json:"modelEnabled"`
	Cache        cache.Stats `json:"cache"`
}

// NewEngine builds an engine from its collaborators. generator may be nil,
// in which case every request uses the deterministic fallback ranker.
func NewEngine(cfg Config, catalog Catalog, history HistoryStore, generator Generator) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if catalog == nil {
		return nil, fmt.Errorf("engine requires a catalog")
	}
	if history == nil {
		return nil, fmt.Errorf("engine requires a history store")
	}
	return &Engine{
		cfg:       cfg,
		catalog:   catalog,
		history:   history,
		generator: generator,
		cache:     cache.New[[]Recommendation](cfg.CacheTTL, cfg.CacheCapacity),
		logger:    logging.WithComponent("engine"),
	}, nil
}

// Status returns the engine's runtime counters.
func (e *Engine) Status() Status {
	return Status{
		Requests:     e.requests.Load(),
		ModelWins:    e.modelWins.Load(),
		Fallbacks:    e.fallbacks.Load(),
		ModelEnabled: e.generator != nil,
		Cache:        e.cache.Stats(),
	}
}

// Invalidate drops the single cache entry for a (shop, productID, userID)
// triple. Called by the tracking ingester whenever a new browsing session is
// recorded, so personalization signals never go stale for the full TTL.
func (e *Engine) Invalidate(shop, productID, userID string) {
	e.cache.Delete(productCacheKey(shop, productID, userID))
	metrics.CacheEvictions.WithLabelValues("invalidation").Inc()
	e.logger.Debug().Str("shop", shop).Str("product_id", productID).
		Str("user_id", userID).Msg("cache entry invalidated")
}

// productCacheKey builds the cache key for a single-product request.
func productCacheKey(shop, productID, userID string) string {
	if userID == "" {
		userID = anonUser
	}
	return strings.Join([]string{"product", shop, productID, userID}, "|")
}

// cartCacheKey builds the cache key for a cart request. Cart ids are sorted
// so requests differing only in array order hash identically.
func cartCacheKey(shop string, cartIDs []string, userID string) string {
	if userID == "" {
		userID = anonUser
	}
	sorted := make([]string, len(cartIDs))
	copy(sorted, cartIDs)
	sort.Strings(sorted)
	return strings.Join([]string{"cart", shop, strings.Join(sorted, ","), userID}, "|")
}

// normalizeLimit applies the default and the upper bound.
func (e *Engine) normalizeLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

// requestData is everything a single computation needs, fetched up front.
type requestData struct {
	products []Product
	profile  *UserProfile
}

// fetchRequestData loads the shop catalog and, when a user is known, the
// browsing and cart profiles. All three reads are independent and issued
// concurrently. The catalog read is critical; profile reads are best-effort
// and degrade to no personalization on failure.
func (e *Engine) fetchRequestData(ctx context.Context, shop, userID string, excluded map[string]struct{}) (*requestData, error) {
	data := &requestData{profile: &UserProfile{}}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		products, err := e.catalog.ProductsByShop(gctx, shop)
		if err != nil {
			return fmt.Errorf("fetch shop products: %w", err)
		}
		data.products = products
		return nil
	})

	if userID != "" {
		g.Go(func() error {
			browsed, err := e.history.BrowsingProfile(gctx, shop, userID)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).
					Msg("browsing profile unavailable")
				return nil
			}
			data.profile.Browsed = browsed
			return nil
		})
		g.Go(func() error {
			carted, err := e.history.CartHistory(gctx, shop, userID)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).
					Msg("cart history unavailable")
				return nil
			}
			data.profile.Carted = carted
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Subjects never appear in the personalization signals.
	data.profile.Browsed = filterBrowsed(data.profile.Browsed, excluded)
	data.profile.Carted = filterCarted(data.profile.Carted, excluded)

	return data, nil
}

// filterBrowsed and filterCarted copy rather than filter in place; the
// input slices belong to the HistoryStore and may be shared.
func filterBrowsed(in []BrowsedProduct, excluded map[string]struct{}) []BrowsedProduct {
	out := make([]BrowsedProduct, 0, len(in))
	for _, bp := range in {
		if _, skip := excluded[bp.ProductID]; !skip {
			out = append(out, bp)
		}
	}
	return out
}

func filterCarted(in []CartedProduct, excluded map[string]struct{}) []CartedProduct {
	out := make([]CartedProduct, 0, len(in))
	for _, cp := range in {
		if _, skip := excluded[cp.ProductID]; !skip {
			out = append(out, cp)
		}
	}
	return out
}

// RecommendForProduct returns up to limit upsell recommendations for a
// viewed product. The result never contains the subject, never duplicates a
// product id, and is shorter than limit only when the shop lacks enough
// distinct candidates.
func (e *Engine) RecommendForProduct(ctx context.Context, shop, productID string, limit int, userID string) ([]Recommendation, error) {
	if shop == "" || productID == "" {
		return nil, fmt.Errorf("shop and product id are required")
	}
	limit = e.normalizeLimit(limit)
	e.requests.Add(1)
	start := time.Now()

	key := productCacheKey(shop, productID, userID)
	if recs, ok := e.cache.Get(key); ok {
		metrics.CacheHits.Inc()
		return recs, nil
	}
	metrics.CacheMisses.Inc()

	excluded := map[string]struct{}{productID: {}}
	data, err := e.fetchRequestData(ctx, shop, userID, excluded)
	if err != nil {
		return nil, err
	}

	var subject *Product
	candidates := make([]Product, 0, len(data.products))
	for i := range data.products {
		if data.products[i].ID == productID {
			subject = &data.products[i]
			continue
		}
		candidates = append(candidates, data.products[i])
	}

	var tokens []string
	if subject != nil {
		tokens = Tokenize(subject.Title)
	} else {
		logging.Ctx(ctx).Warn().Str("shop", shop).Str("product_id", productID).
			Msg("subject product not found, degrading to last-resort ranking")
	}

	ranked, source := e.rankCandidates(ctx, rankInput{
		subject:    subject,
		cartItems:  nil,
		candidates: candidates,
		tokens:     tokens,
		excluded:   excluded,
		profile:    data.profile,
		limit:      limit,
	})

	recs := e.finish(ctx, shop, ranked, data, limit)
	e.cache.Set(key, recs)
	metrics.CacheSize.Set(float64(e.cache.Len()))
	metrics.RecordRecommendation("product", source, time.Since(start))
	return recs, nil
}

// RecommendForCart returns up to limit upsell recommendations for the
// products currently in a cart. Unknown cart ids are tolerated; the request
// fails only when none of them resolve against the catalog.
func (e *Engine) RecommendForCart(ctx context.Context, shop string, cartProductIDs []string, limit int, userID string) ([]Recommendation, error) {
	if shop == "" || len(cartProductIDs) == 0 {
		return nil, fmt.Errorf("shop and at least one cart product id are required")
	}
	limit = e.normalizeLimit(limit)
	e.requests.Add(1)
	start := time.Now()

	key := cartCacheKey(shop, cartProductIDs, userID)
	if recs, ok := e.cache.Get(key); ok {
		metrics.CacheHits.Inc()
		return recs, nil
	}
	metrics.CacheMisses.Inc()

	excluded := make(map[string]struct{}, len(cartProductIDs))
	for _, id := range cartProductIDs {
		excluded[id] = struct{}{}
	}

	data, err := e.fetchRequestData(ctx, shop, userID, excluded)
	if err != nil {
		return nil, err
	}

	var cartItems []Product
	candidates := make([]Product, 0, len(data.products))
	for _, p := range data.products {
		if _, inCart := excluded[p.ID]; inCart {
			cartItems = append(cartItems, p)
			continue
		}
		candidates = append(candidates, p)
	}
	if len(cartItems) == 0 {
		return nil, &SubjectNotFoundError{Shop: shop, ProductIDs: cartProductIDs}
	}

	// Type tokens for a cart are the union across all cart item titles.
	seen := make(map[string]struct{})
	var tokens []string
	for _, item := range cartItems {
		for _, tok := range Tokenize(item.Title) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}

	ranked, source := e.rankCandidates(ctx, rankInput{
		subject:    nil,
		cartItems:  cartItems,
		candidates: candidates,
		tokens:     tokens,
		excluded:   excluded,
		profile:    data.profile,
		limit:      limit,
	})

	recs := e.finish(ctx, shop, ranked, data, limit)
	e.cache.Set(key, recs)
	metrics.CacheSize.Set(float64(e.cache.Len()))
	metrics.RecordRecommendation("cart", source, time.Since(start))
	return recs, nil
}

// rankInput bundles the arguments of one ranking pass.
type rankInput struct {
	subject    *Product  // single-product context, nil for carts
	cartItems  []Product // cart context, empty for single products
	candidates []Product
	tokens     []string
	excluded   map[string]struct{}
	profile    *UserProfile
	limit      int
}

// rankCandidates runs the model chain and falls back to the deterministic
// ranker on any failure. Returns the ranked list and the winning source
// label for metrics.
func (e *Engine) rankCandidates(ctx context.Context, in rankInput) ([]Recommendation, string) {
	if e.generator != nil && (in.subject != nil || len(in.cartItems) > 0) {
		if ranked, ok := e.tryModel(ctx, in); ok {
			e.modelWins.Add(1)
			return ranked, "model"
		}
	}
	e.fallbacks.Add(1)

	var ranked []Recommendation
	if in.cartItems != nil {
		ranked = fallbackForCart(in.cartItems, in.candidates, in.excluded, in.limit)
	} else {
		ranked = fallbackForProduct(in.subject, in.candidates, in.excluded, in.limit)
	}
	return ranked, "fallback"
}

// tryModel runs prompt -> remote call -> parse -> rank & pad. Any failure,
// including a timeout or zero usable parsed results, reports ok=false so the
// caller substitutes the fallback ranker. Errors never propagate out of the
// model chain.
func (e *Engine) tryModel(ctx context.Context, in rankInput) ([]Recommendation, bool) {
	annotated := annotateCandidates(in.candidates, in.tokens)

	promptSet := promptCandidates(annotated)
	if len(promptSet) > e.cfg.MaxPromptCandidates {
		promptSet = promptSet[:e.cfg.MaxPromptCandidates]
	}

	var prompt string
	if in.cartItems != nil {
		prompt = buildCartPrompt(in.cartItems, promptSet, in.profile, in.limit)
	} else {
		prompt = buildProductPrompt(in.subject, promptSet, in.profile, in.limit)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	raw, err := e.generator.Generate(callCtx, prompt)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("remote generation failed, using fallback ranking")
		return nil, false
	}

	parsed, err := parseModelResponse(raw, annotated, *logging.Ctx(ctx))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("model output unparseable, using fallback ranking")
		return nil, false
	}
	if len(parsed) == 0 {
		logging.Ctx(ctx).Warn().Msg("model produced zero usable recommendations, using fallback ranking")
		return nil, false
	}

	return rankAndPad(parsed, annotated, in.profile.HasSignals(), in.limit), true
}

// finish applies the history merge and engagement boost shared by both
// entry points.
func (e *Engine) finish(ctx context.Context, shop string, ranked []Recommendation, data *requestData, limit int) []Recommendation {
	byID := make(map[string]Product, len(data.products))
	for _, p := range data.products {
		byID[p.ID] = p
	}
	merged := mergeHistory(ranked, data.profile, byID, limit)
	return e.boostByEngagement(ctx, shop, merged)
}
