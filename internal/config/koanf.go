// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/upsell/config.yaml",
	"/etc/upsell/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "UPSELL_CONFIG"

// Load builds the configuration with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths names the config paths parsed as comma-separated slices
// when they arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// the known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps UPSELL_-prefixed environment variables to koanf
// config paths:
//
//	UPSELL_HTTP_PORT       -> server.port
//	UPSELL_DATABASE_DSN    -> database.dsn
//	UPSELL_GENAI_API_KEY   -> genai.api_key
//	UPSELL_LOG_LEVEL       -> logging.level
//
// Unmapped variables are skipped so unrelated environment noise never
// pollutes the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"upsell_http_host":        "server.host",
		"upsell_http_port":        "server.port",
		"upsell_read_timeout":     "server.read_timeout",
		"upsell_write_timeout":    "server.write_timeout",
		"upsell_shutdown_timeout": "server.shutdown_timeout",

		// Database
		"upsell_database_dsn":       "database.dsn",
		"upsell_database_max_conns": "database.max_conns",
		"upsell_database_min_conns": "database.min_conns",

		// Remote generation API
		"upsell_genai_base_url":            "genai.base_url",
		"upsell_genai_api_key":             "genai.api_key",
		"upsell_genai_model":               "genai.model",
		"upsell_genai_timeout":             "genai.timeout",
		"upsell_genai_requests_per_second": "genai.requests_per_second",

		// Engine
		"upsell_engine_default_limit":         "engine.default_limit",
		"upsell_engine_max_limit":             "engine.max_limit",
		"upsell_engine_cache_ttl":             "engine.cache_ttl",
		"upsell_engine_cache_capacity":        "engine.cache_capacity",
		"upsell_engine_remote_timeout":        "engine.remote_timeout",
		"upsell_engine_max_prompt_candidates": "engine.max_prompt_candidates",

		// Security
		"upsell_cors_origins":      "security.cors_origins",
		"upsell_rate_limit_reqs":   "security.rate_limit_reqs",
		"upsell_rate_limit_window": "security.rate_limit_window",

		// Logging
		"upsell_log_level":  "logging.level",
		"upsell_log_format": "logging.format",
		"upsell_log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
