// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UPSELL_DATABASE_DSN", "postgres://localhost/upsell_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.DefaultLimit != 4 || cfg.Engine.MaxLimit != 20 {
		t.Errorf("Unexpected engine limits: %+v", cfg.Engine)
	}
	if cfg.Engine.CacheTTL != 5*time.Minute {
		t.Errorf("Expected 5m cache TTL, got %s", cfg.Engine.CacheTTL)
	}
	if cfg.GenAI.APIKey != "" {
		t.Error("Expected no API key by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Error("Expected load to fail without a database DSN")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UPSELL_DATABASE_DSN", "postgres://localhost/upsell_test")
	t.Setenv("UPSELL_HTTP_PORT", "9090")
	t.Setenv("UPSELL_GENAI_API_KEY", "sk-test")
	t.Setenv("UPSELL_ENGINE_DEFAULT_LIMIT", "6")
	t.Setenv("UPSELL_LOG_LEVEL", "debug")
	t.Setenv("UPSELL_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.GenAI.APIKey != "sk-test" {
		t.Errorf("Expected API key from env, got %q", cfg.GenAI.APIKey)
	}
	if cfg.Engine.DefaultLimit != 6 {
		t.Errorf("Expected default limit 6, got %d", cfg.Engine.DefaultLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Logging.Level)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://a.example" {
		t.Errorf("Expected CORS origins parsed from comma list, got %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7171\nengine:\n  default_limit: 8\n  max_limit: 16\ndatabase:\n  dsn: postgres://localhost/from_file\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7171 {
		t.Errorf("Expected port 7171 from file, got %d", cfg.Server.Port)
	}
	if cfg.Engine.DefaultLimit != 8 || cfg.Engine.MaxLimit != 16 {
		t.Errorf("Unexpected engine limits: %+v", cfg.Engine)
	}
	if cfg.Database.DSN != "postgres://localhost/from_file" {
		t.Errorf("Unexpected DSN: %q", cfg.Database.DSN)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7171\ndatabase:\n  dsn: postgres://localhost/from_file\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("UPSELL_HTTP_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected env to beat file, got port %d", cfg.Server.Port)
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := defaultConfig()
		cfg.Database.DSN = "postgres://localhost/upsell_test"
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg = base()
	cfg.Engine.MaxLimit = 2
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for max_limit below default_limit")
	}

	cfg = base()
	cfg.Engine.CacheTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero cache TTL")
	}

	cfg = base()
	cfg.GenAI.APIKey = "sk-test"
	cfg.GenAI.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for API key without model")
	}

	cfg = base()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestEnvTransformIgnoresUnmappedVars(t *testing.T) {
	t.Parallel()

	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("Expected unmapped variable skipped, got %q", got)
	}
	if got := envTransformFunc("UPSELL_HTTP_PORT"); got != "server.port" {
		t.Errorf("Unexpected mapping: %q", got)
	}
}
