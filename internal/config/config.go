// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package config defines and loads the service configuration from layered
// sources: struct defaults, an optional YAML file, and environment
// variables, in ascending precedence.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	GenAI     GenAIConfig     `koanf:"genai"`
	Engine    EngineConfig    `koanf:"engine"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds the Postgres settings.
type DatabaseConfig struct {
	DSN      string `koanf:"dsn" validate:"required"`
	MaxConns int32  `koanf:"max_conns" validate:"min=1"`
	MinConns int32  `koanf:"min_conns" validate:"min=0"`
}

// GenAIConfig holds the remote text-generation API settings. An empty API
// key disables the remote model; every request then uses the deterministic
// fallback ranker.
type GenAIConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// EngineConfig holds the recommendation engine knobs.
type EngineConfig struct {
	DefaultLimit        int           `koanf:"default_limit" validate:"min=1"`
	MaxLimit            int           `koanf:"max_limit" validate:"min=1"`
	CacheTTL            time.Duration `koanf:"cache_ttl"`
	CacheCapacity       int           `koanf:"cache_capacity" validate:"min=1"`
	RemoteTimeout       time.Duration `koanf:"remote_timeout"`
	MaxPromptCandidates int           `koanf:"max_prompt_candidates" validate:"min=1"`
}

// SecurityConfig holds the HTTP surface protections.
type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:      "",
			MaxConns: 10,
			MinConns: 2,
		},
		GenAI: GenAIConfig{
			BaseURL:           "https://api.openai.com/v1",
			APIKey:            "",
			Model:             "gpt-4o-mini",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
		},
		Engine: EngineConfig{
			DefaultLimit:        4,
			MaxLimit:            20,
			CacheTTL:            5 * time.Minute,
			CacheCapacity:       500,
			RemoteTimeout:       20 * time.Second,
			MaxPromptCandidates: 50,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration using struct tags plus cross-field
// rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Engine.MaxLimit < c.Engine.DefaultLimit {
		return fmt.Errorf("engine.max_limit %d below engine.default_limit %d",
			c.Engine.MaxLimit, c.Engine.DefaultLimit)
	}
	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("engine.cache_ttl must be positive, got %s", c.Engine.CacheTTL)
	}
	if c.GenAI.APIKey != "" && c.GenAI.Model == "" {
		return fmt.Errorf("genai.model is required when genai.api_key is set")
	}
	return nil
}
