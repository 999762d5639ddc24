// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/merchware/upsell/internal/logging"
	"github.com/merchware/upsell/internal/recommend"
)

// requestTimeout bounds one recommendation request end to end, including
// the remote model call.
const requestTimeout = 30 * time.Second

// SessionRecorder persists tracked browsing sessions. Implemented by the
// history store.
type SessionRecorder interface {
	RecordBrowsingSession(ctx context.Context, shop, userID, productID string, durationSeconds int64) error
}

// Pinger reports backing-store connectivity for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStatus reports the generation client's circuit breaker state.
type BreakerStatus interface {
	State() string
}

// Handler carries the dependencies of all HTTP handlers.
type Handler struct {
	engine   *recommend.Engine
	sessions SessionRecorder
	db       Pinger
	breaker  BreakerStatus // nil when no remote model is configured
	validate *validator.Validate
}

// NewHandler builds the handler set. breaker may be nil.
func NewHandler(engine *recommend.Engine, sessions SessionRecorder, db Pinger, breaker BreakerStatus) *Handler {
	return &Handler{
		engine:   engine,
		sessions: sessions,
		db:       db,
		breaker:  breaker,
		validate: validator.New(),
	}
}

// ProductRecommendations handles
// GET /api/v1/shops/{shop}/products/{productID}/recommendations?limit=N&userId=U.
func (h *Handler) ProductRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	shop := chi.URLParam(r, "shop")
	productID := chi.URLParam(r, "productID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			rw.BadRequest("limit must be a positive integer")
			return
		}
		limit = parsed
	}
	userID := r.URL.Query().Get("userId")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	recs, err := h.engine.RecommendForProduct(ctx, shop, productID, limit, userID)
	if err != nil {
		h.writeEngineError(rw, r, err)
		return
	}
	rw.Success(recommendationList{Recommendations: recs, Count: len(recs)})
}

// cartRecommendationsRequest is the POST body for cart recommendations.
type cartRecommendationsRequest struct {
	ProductIDs []string `json:"productIds" validate:"required,min=1,dive,required"`
	Limit      int      `json:"limit" validate:"min=0"`
	UserID     string   `json:"userId"`
}

// CartRecommendations handles
// POST /api/v1/shops/{shop}/cart/recommendations.
func (h *Handler) CartRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	shop := chi.URLParam(r, "shop")

	var req cartRecommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed("invalid cart recommendation request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	recs, err := h.engine.RecommendForCart(ctx, shop, req.ProductIDs, req.Limit, req.UserID)
	if err != nil {
		h.writeEngineError(rw, r, err)
		return
	}
	rw.Success(recommendationList{Recommendations: recs, Count: len(recs)})
}

// recommendationList is the recommendations payload.
type recommendationList struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Count           int                        `json:"count"`
}

// trackSessionRequest is the POST body for the tracking ingest endpoint.
type trackSessionRequest struct {
	ProductID       string `json:"productId" validate:"required"`
	UserID          string `json:"userId" validate:"required"`
	DurationSeconds int64  `json:"durationSeconds" validate:"min=1"`
}

// TrackSession handles POST /api/v1/shops/{shop}/tracking/sessions. It
// records a browsing session and invalidates the matching cache entry so
// the next recommendation request sees the fresh personalization signal.
func (h *Handler) TrackSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	shop := chi.URLParam(r, "shop")

	var req trackSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed("invalid tracking session", err.Error())
		return
	}

	if err := h.sessions.RecordBrowsingSession(r.Context(), shop, req.UserID, req.ProductID, req.DurationSeconds); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to record browsing session")
		rw.InternalError("failed to record session")
		return
	}

	h.engine.Invalidate(shop, req.ProductID, req.UserID)
	rw.Accepted(map[string]string{"status": "recorded"})
}

// invalidateRequest is the body for the explicit cache invalidation
// endpoint.
type invalidateRequest struct {
	ProductID string `json:"productId" validate:"required"`
	UserID    string `json:"userId"`
}

// InvalidateCache handles DELETE /api/v1/shops/{shop}/cache.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	shop := chi.URLParam(r, "shop")

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed("invalid invalidation request", err.Error())
		return
	}

	h.engine.Invalidate(shop, req.ProductID, req.UserID)
	rw.NoContent()
}

// engineStatus is the payload for the status endpoint.
type engineStatus struct {
	recommend.Status
	BreakerState string `json:"breakerState,omitempty"`
}

// EngineStatus handles GET /api/v1/engine/status.
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	status := engineStatus{Status: h.engine.Status()}
	if h.breaker != nil {
		status.BreakerState = h.breaker.State()
	}
	rw.Success(status)
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready; ready means the database
// answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
		rw.ServiceUnavailable("database unreachable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// writeEngineError maps engine errors to HTTP responses.
func (h *Handler) writeEngineError(rw *ResponseWriter, r *http.Request, err error) {
	var notFound *recommend.SubjectNotFoundError
	if errors.As(err, &notFound) {
		rw.NotFound(notFound.Error())
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).Msg("recommendation request failed")
	rw.InternalError("failed to compute recommendations")
}
