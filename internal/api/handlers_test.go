// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/merchware/upsell/internal/recommend"
)

type stubCatalog struct {
	products []recommend.Product
}

func (s *stubCatalog) ProductsByShop(context.Context, string) ([]recommend.Product, error) {
	return s.products, nil
}

type stubHistory struct {
	recorded []string
	err      error
}

func (s *stubHistory) BrowsingProfile(context.Context, string, string) ([]recommend.BrowsedProduct, error) {
	return nil, nil
}

func (s *stubHistory) CartHistory(context.Context, string, string) ([]recommend.CartedProduct, error) {
	return nil, nil
}

func (s *stubHistory) EngagementStats(context.Context, string, []string) (map[string]recommend.EngagementStat, error) {
	return nil, nil
}

func (s *stubHistory) RecordBrowsingSession(_ context.Context, _, _, productID string, _ int64) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, productID)
	return nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

func testServer(t *testing.T, history *stubHistory, db *stubPinger) http.Handler {
	t.Helper()

	catalog := &stubCatalog{products: []recommend.Product{
		{ID: "101", Title: "Gold Bracelet", Category: "jewelry", Brand: "Lumina", Price: 49.99},
		{ID: "102", Title: "Silver Bracelet", Category: "jewelry", Brand: "Lumina", Price: 39.99},
		{ID: "103", Title: "Pearl Necklace", Category: "jewelry", Brand: "Aurelle", Price: 59.99},
	}}

	engine, err := recommend.NewEngine(recommend.DefaultConfig(), catalog, history, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return NewRouter(NewHandler(engine, history, db, nil), DefaultRouterConfig())
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestProductRecommendationsEndpoint(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shops/shop1/products/101/recommendations?limit=2", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("Expected success, got %+v", resp)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected data shape: %T", resp.Data)
	}
	if count, _ := data["count"].(float64); count != 2 {
		t.Errorf("Expected count 2, got %v", data["count"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}

func TestProductRecommendationsInvalidLimit(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	for _, limit := range []string{"abc", "-1", "0"} {
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/shops/shop1/products/101/recommendations?limit="+limit, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", limit, rec.Code)
		}
	}
}

func TestCartRecommendationsEndpoint(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	body := `{"productIds": ["101", "103"], "limit": 2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/shop1/cart/recommendations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("Expected success, got %+v", resp)
	}
}

func TestCartRecommendationsValidation(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: `{{{`, want: http.StatusBadRequest},
		{name: "empty cart", body: `{"productIds": []}`, want: http.StatusUnprocessableEntity},
		{name: "missing field", body: `{"limit": 3}`, want: http.StatusUnprocessableEntity},
		{name: "blank id", body: `{"productIds": [""]}`, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/shop1/cart/recommendations", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCartRecommendationsUnknownProducts(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	body := `{"productIds": ["998", "999"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/shop1/cart/recommendations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 when no cart product resolves, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Unexpected error payload: %+v", resp.Error)
	}
}

func TestTrackSessionEndpoint(t *testing.T) {
	history := &stubHistory{}
	server := testServer(t, history, &stubPinger{})

	body := `{"productId": "101", "userId": "user1", "durationSeconds": 42}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/shop1/tracking/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(history.recorded) != 1 || history.recorded[0] != "101" {
		t.Errorf("Expected session recorded for 101, got %v", history.recorded)
	}
}

func TestTrackSessionValidation(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing user", body: `{"productId": "101", "durationSeconds": 10}`, want: http.StatusUnprocessableEntity},
		{name: "zero duration", body: `{"productId": "101", "userId": "u", "durationSeconds": 0}`, want: http.StatusUnprocessableEntity},
		{name: "not json", body: `nope`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/shop1/tracking/sessions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestTrackSessionStoreFailure(t *testing.T) {
	history := &stubHistory{err: errors.New("insert failed")}
	server := testServer(t, history, &stubPinger{})

	body := `{"productId": "101", "userId": "user1", "durationSeconds": 42}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shops/shop1/tracking/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestInvalidateCacheEndpoint(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	body := `{"productId": "101", "userId": "user1"}`
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/shops/shop1/cache", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEngineStatusEndpoint(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected data shape: %T", resp.Data)
	}
	if enabled, _ := data["modelEnabled"].(bool); enabled {
		t.Error("Expected model disabled in test engine")
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected live 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected ready 200, got %d", rec.Code)
	}
}

func TestHealthReadyDatabaseDown(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "recommendation_cache_entries") {
		t.Error("Expected recommendation metrics in exposition")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	server := testServer(t, &stubHistory{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
	req.Header.Set("X-Request-ID", "incoming-id")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "incoming-id" {
		t.Errorf("Expected incoming request id reused, got %q", got)
	}
}
