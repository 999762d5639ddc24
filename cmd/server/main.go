// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package main is the entry point for the Upsell recommendation server.
//
// Upsell serves product and cart recommendations for e-commerce storefronts.
// It asks a remote text-generation API to pick and justify upsell candidates
// and falls back to a deterministic attribute-similarity ranker whenever the
// remote call fails, times out, or returns nothing usable. Recommendations
// are personalized from tracked browsing and cart history and cached with a
// short TTL.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment (Koanf v2)
//  2. Logging: zerolog, JSON by default
//  3. Database: PostgreSQL via pgxpool, with schema migration
//  4. Generation client: OpenAI-compatible API behind a circuit breaker;
//     skipped entirely when no API key is configured
//  5. Recommendation engine: remote-first pipeline with fallback ranking
//  6. HTTP server: Chi router under Suture supervision
//
// Graceful shutdown on SIGINT and SIGTERM: the server stops accepting new
// connections, waits for in-flight requests up to the shutdown timeout, then
// closes the database pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/merchware/upsell/internal/api"
	"github.com/merchware/upsell/internal/config"
	"github.com/merchware/upsell/internal/genai"
	"github.com/merchware/upsell/internal/logging"
	"github.com/merchware/upsell/internal/recommend"
	"github.com/merchware/upsell/internal/store"
	"github.com/merchware/upsell/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("genai_enabled", cfg.GenAI.APIKey != "").
		Msg("Starting upsell server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(ctx, store.Config{
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Without an API key the engine gets a nil generator and serves every
	// request from the fallback ranker.
	var generator recommend.Generator
	var breaker *genai.BreakerClient
	if cfg.GenAI.APIKey != "" {
		client := genai.NewClient(genai.Config{
			BaseURL:           cfg.GenAI.BaseURL,
			APIKey:            cfg.GenAI.APIKey,
			Model:             cfg.GenAI.Model,
			Timeout:           cfg.GenAI.Timeout,
			RequestsPerSecond: cfg.GenAI.RequestsPerSecond,
		})
		breaker = genai.NewBreakerClient(client)
		generator = breaker
		logging.Info().Str("model", cfg.GenAI.Model).Msg("Generation client initialized")
	} else {
		logging.Warn().Msg("No generation API key configured, serving fallback recommendations only")
	}

	catalog := store.NewCatalog(db)
	history := store.NewHistory(db)

	engine, err := recommend.NewEngine(recommend.Config{
		DefaultLimit:        cfg.Engine.DefaultLimit,
		MaxLimit:            cfg.Engine.MaxLimit,
		CacheTTL:            cfg.Engine.CacheTTL,
		CacheCapacity:       cfg.Engine.CacheCapacity,
		RemoteTimeout:       cfg.Engine.RemoteTimeout,
		MaxPromptCandidates: cfg.Engine.MaxPromptCandidates,
	}, catalog, history, generator)
	if err != nil {
		return fmt.Errorf("failed to create recommendation engine: %w", err)
	}

	var breakerStatus api.BreakerStatus
	if breaker != nil {
		breakerStatus = breaker
	}
	handler := api.NewHandler(engine, history, db, breakerStatus)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:     cfg.Security.CORSOrigins,
		RateLimitReqs:   cfg.Security.RateLimitReqs,
		RateLimitWindow: cfg.Security.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	supCfg := supervisor.DefaultConfig()
	supCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	sup := supervisor.New(logging.NewSlogLogger(), supCfg)
	sup.Add(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor failed: %w", err)
	}

	unstopped, _ := sup.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
	return nil
}
