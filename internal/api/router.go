// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package api provides the HTTP serving surface using Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/merchware/upsell/internal/middleware"
)

// RouterConfig holds the routing-level security settings.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// DefaultRouterConfig returns permissive defaults suitable for local
// development.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   100,
		RateLimitWindow: time.Minute,
	}
}

// NewRouter wires middleware and routes around the handler set.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get a permissive limit so monitoring can poll
	// frequently without counting against the API budget.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(1000, time.Minute))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/engine/status", handler.EngineStatus)

		r.Route("/shops/{shop}", func(r chi.Router) {
			r.Get("/products/{productID}/recommendations", handler.ProductRecommendations)
			r.Post("/cart/recommendations", handler.CartRecommendations)
			r.Post("/tracking/sessions", handler.TrackSession)
			r.Delete("/cache", handler.InvalidateCache)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
