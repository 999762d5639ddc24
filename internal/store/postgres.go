// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package store implements the catalog and history contracts on Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/merchware/upsell/internal/logging"
)

// Config holds the Postgres connection settings.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string `koanf:"dsn"`

	// MaxConns bounds the pool size.
	MaxConns int32 `koanf:"max_conns"`

	// MinConns keeps warm connections for latency-sensitive reads.
	MinConns int32 `koanf:"min_conns"`
}

// DefaultConfig returns production pool defaults. The DSN must come from
// configuration.
func DefaultConfig() Config {
	return Config{
		MaxConns: 10,
		MinConns: 2,
	}
}

// DB wraps the pgx connection pool shared by the store types.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, cfg Config) (*DB, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{Pool: pool, logger: logging.WithComponent("store")}, nil
}

// Close releases the pool.
func (db *DB) Close() { db.Pool.Close() }

// Ping verifies database connectivity, used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// schema creates the tables the service owns. Product rows are written by
// the external catalog sync pipeline; session rows by the tracking ingest
// endpoint.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	shop        TEXT NOT NULL,
	id          TEXT NOT NULL,
	title       TEXT NOT NULL,
	handle      TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	brand       TEXT NOT NULL DEFAULT '',
	price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL DEFAULT 'active',
	PRIMARY KEY (shop, id)
);

CREATE TABLE IF NOT EXISTS browsing_sessions (
	id               BIGSERIAL PRIMARY KEY,
	shop             TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	product_id       TEXT NOT NULL,
	duration_seconds BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_browsing_sessions_user
	ON browsing_sessions (shop, user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_browsing_sessions_product
	ON browsing_sessions (shop, product_id, created_at);

CREATE TABLE IF NOT EXISTS cart_sessions (
	id              BIGSERIAL PRIMARY KEY,
	shop            TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	cart_session_id TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_cart_sessions_user
	ON cart_sessions (shop, user_id, created_at);
`

// Migrate bootstraps the schema. Idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	db.logger.Info().Msg("database schema ready")
	return nil
}
