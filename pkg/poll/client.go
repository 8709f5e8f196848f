// Package poll is the HTTP client for the backend's pull endpoints: the live
// status snapshot, the health-history dump, and per-service console screens.
package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fleetpulse/pkg/health"
)

// DefaultRequestTimeout bounds every request; a hung backend surfaces as an
// ordinary error on the caller's cadence rather than a stuck poll loop.
const DefaultRequestTimeout = 10 * time.Second

// HistoryResponse is the backend's health-history dump: authoritative uptime
// percentages plus the server-retained sample history, both keyed by service.
type HistoryResponse struct {
	Uptimes map[string]float64         `json:"uptimes"`
	History map[string][]health.Sample `json:"history"`
}

// Client talks to the backend's REST surface. Safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	logger logrus.FieldLogger
}

// NewClient builds a Client for the given base URL, e.g. "http://127.0.0.1:8080/api".
// A zero timeout falls back to the default.
func NewClient(base string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Snapshot fetches the live status of every service.
func (c *Client) Snapshot(ctx context.Context) (map[string]health.ServiceState, error) {
	var body struct {
		Services map[string]health.ServiceState `json:"services"`
	}
	if err := c.getJSON(ctx, "/status", &body); err != nil {
		return nil, fmt.Errorf("fetching status snapshot: %w", err)
	}
	return body.Services, nil
}

// History fetches the server-side health history and uptime figures.
func (c *Client) History(ctx context.Context) (HistoryResponse, error) {
	var body HistoryResponse
	if err := c.getJSON(ctx, "/history", &body); err != nil {
		return HistoryResponse{}, fmt.Errorf("fetching history: %w", err)
	}
	return body, nil
}

// Console fetches the current console screen of one service. Only meaningful
// for services whose snapshot advertises a console.
func (c *Client) Console(ctx context.Context, key string) (string, error) {
	var body struct {
		Screen string `json:"screen"`
	}
	if err := c.getJSON(ctx, "/console/"+url.PathEscape(key), &body); err != nil {
		return "", fmt.Errorf("fetching console for %s: %w", key, err)
	}
	return body.Screen, nil
}

// Jobs fetches the backend's job list verbatim. The monitor publishes it as an
// opaque fact; this layer does not model job shapes.
func (c *Client) Jobs(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.get(ctx, "/jobs")
	if err != nil {
		return nil, fmt.Errorf("fetching jobs: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching jobs: %w", err)
	}
	return json.RawMessage(raw), nil
}

// get performs one bounded GET, logging failures at debug. Callers own the
// user-facing error context; these logs exist for tracing a flaky backend.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Debug("backend request failed")
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.logger.WithFields(logrus.Fields{"path": path, "status": resp.Status}).Debug("backend request rejected")
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
