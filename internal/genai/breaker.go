// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

package genai

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/merchware/upsell/internal/logging"
	"github.com/merchware/upsell/internal/metrics"
	"github.com/merchware/upsell/internal/recommend"
)

// BreakerClient wraps a Client with circuit breaker protection. When the
// generation API is down or slow, the breaker fails fast so every request
// lands on the deterministic fallback ranker instead of queueing on a dead
// upstream.
//
// The breaker uses real time for its interval and timeout calculations.
// Unit tests should exercise the wrapped client directly or inject a fake
// Generator into the engine.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[string]
	name   string
}

// NewBreakerClient wraps client in a circuit breaker:
// - max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute wait before probing a tripped circuit
// - opens at >=60% failure rate over at least 10 requests
func NewBreakerClient(client *Client) *BreakerClient {
	cbName := "generation-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).
				Str("to", stateToString(to)).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// Generate runs the remote call through the breaker. A rejected request is
// reported as a *recommend.RemoteError like any other remote failure.
// Implements recommend.Generator.
func (b *BreakerClient) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := b.cb.Execute(func() (string, error) {
		return b.client.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.GenerationCallErrors.WithLabelValues("breaker_open").Inc()
			return "", &recommend.RemoteError{Op: "circuit breaker", Err: err}
		}
		return "", err
	}
	return result, nil
}

// State returns the breaker's current state as a string for status reporting.
func (b *BreakerClient) State() string {
	return stateToString(b.cb.State())
}

// stateToFloat converts circuit breaker state to a numeric metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
