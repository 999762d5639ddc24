// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package genai is the HTTP client for the remote text-generation API.
// It speaks the OpenAI-compatible chat-completions protocol and layers
// client-side rate limiting, bounded retries with exponential backoff, and
// a circuit breaker on top. Every failure mode surfaces as
// *recommend.RemoteError so the engine can treat the call as all-or-nothing.
package genai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/merchware/upsell/internal/logging"
	"github.com/merchware/upsell/internal/metrics"
	"github.com/merchware/upsell/internal/recommend"
)

const (
	// maxRetries bounds retry attempts for 429 and 5xx responses.
	maxRetries = 3

	// retryBaseDelay is the first backoff step; each retry doubles it.
	retryBaseDelay = 500 * time.Millisecond

	// maxErrorBodySize limits how much of an error response body is read
	// for diagnostics.
	maxErrorBodySize = 64 * 1024
)

// Config holds the remote generation API settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates requests. Empty disables the client entirely.
	APIKey string `koanf:"api_key"`

	// Model is the chat-completions model name.
	Model string `koanf:"model"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond is the client-side rate limit.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// DefaultConfig returns production defaults. The API key must come from the
// environment.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.openai.com/v1",
		Model:             "gpt-4o-mini",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
	}
}

// Client calls the chat-completions endpoint. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient builds a generation client from config.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logging.WithComponent("genai"),
	}
}

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the chat-completions response the client
// reads.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt as a single-turn chat completion and returns
// the raw assistant text. Implements recommend.Generator.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.GenerationCallErrors.WithLabelValues("rate_limited").Inc()
		return "", &recommend.RemoteError{Op: "rate limiter wait", Err: err}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", &recommend.RemoteError{Op: "encode request", Err: err}
	}

	start := time.Now()
	raw, err := c.doWithRetry(ctx, body)
	metrics.GenerationCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		metrics.GenerationCallErrors.WithLabelValues("empty").Inc()
		return "", &recommend.RemoteError{Op: "decode response", Err: err}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		metrics.GenerationCallErrors.WithLabelValues("empty").Inc()
		return "", &recommend.RemoteError{Op: "empty completion content"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// doWithRetry performs the POST with bounded retries. 429 and 5xx responses
// back off exponentially; other failures return immediately.
func (c *Client) doWithRetry(ctx context.Context, body []byte) ([]byte, error) {
	url := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			c.logger.Debug().Int("attempt", attempt).Dur("delay", delay).
				Msg("retrying generation call")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.GenerationCallErrors.WithLabelValues("transport").Inc()
				return nil, &recommend.RemoteError{Op: "retry wait", Err: ctx.Err()}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, &recommend.RemoteError{Op: "build request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			metrics.GenerationCallErrors.WithLabelValues("transport").Inc()
			lastErr = &recommend.RemoteError{Op: "http request", Err: err}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			snippet := readBodyForError(resp.Body)
			resp.Body.Close()
			metrics.GenerationCallErrors.WithLabelValues("status").Inc()
			lastErr = &recommend.RemoteError{
				Op: fmt.Sprintf("status %d: %s", resp.StatusCode, snippet),
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			snippet := readBodyForError(resp.Body)
			resp.Body.Close()
			metrics.GenerationCallErrors.WithLabelValues("status").Inc()
			return nil, &recommend.RemoteError{
				Op: fmt.Sprintf("status %d: %s", resp.StatusCode, snippet),
			}
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			metrics.GenerationCallErrors.WithLabelValues("transport").Inc()
			lastErr = &recommend.RemoteError{Op: "read response", Err: err}
			continue
		}
		return raw, nil
	}
	return nil, lastErr
}

// readBodyForError reads a bounded snippet of an error response body.
func readBodyForError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return "<no body>"
	}
	return strings.TrimSpace(string(data))
}
