// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/merchware/upsell/internal/metrics"
	"github.com/merchware/upsell/internal/recommend"
)

// Catalog reads product records. Implements recommend.Catalog.
type Catalog struct {
	db *DB
}

// NewCatalog builds a catalog accessor over the shared pool.
func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

// ProductByID returns a single product, or nil when the shop has no product
// with that id.
func (c *Catalog) ProductByID(ctx context.Context, shop, productID string) (*recommend.Product, error) {
	start := time.Now()
	row := c.db.Pool.QueryRow(ctx,
		`SELECT id, title, handle, category, brand, price, tags, status
		 FROM products WHERE shop = $1 AND id = $2`, shop, productID)

	var p recommend.Product
	err := row.Scan(&p.ID, &p.Title, &p.Handle, &p.Category, &p.Brand, &p.Price, &p.Tags, &p.Status)
	metrics.RecordDBQuery("product_by_id", time.Since(start), err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s/%s: %w", shop, productID, err)
	}
	return &p, nil
}

// ProductsByShop returns every active product in the shop, in stable id
// order so downstream tie-breaking is deterministic.
func (c *Catalog) ProductsByShop(ctx context.Context, shop string) ([]recommend.Product, error) {
	start := time.Now()
	rows, err := c.db.Pool.Query(ctx,
		`SELECT id, title, handle, category, brand, price, tags, status
		 FROM products WHERE shop = $1 AND status = 'active' ORDER BY id`, shop)
	metrics.RecordDBQuery("products_by_shop", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query shop products %s: %w", shop, err)
	}
	defer rows.Close()

	var products []recommend.Product
	for rows.Next() {
		var p recommend.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Handle, &p.Category, &p.Brand, &p.Price, &p.Tags, &p.Status); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shop products: %w", err)
	}
	return products, nil
}
