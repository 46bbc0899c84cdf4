// Package upstream is a client for the BattleMetrics REST API.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/playerwatch/internal/metrics"
)

// Operation names used in errors, logs and metrics
const (
	OpFetchServer   = "fetch_server"
	OpSearchPlayers = "search_players"
)

const searchPageSize = 10

// maxErrorBody caps how much of an error response is kept in the error message
const maxErrorBody = 512

// Config holds upstream connection settings
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests; zero or less disables limiting
	RequestsPerSecond float64
}

// DefaultConfig returns the settings used against the public API
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.battlemetrics.com",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 2,
	}
}

// Client performs authenticated requests against the upstream API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// New creates a new upstream client
func New(cfg Config, recorder metrics.Recorder, logger *slog.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(int(cfg.RequestsPerSecond), 1)
	}
	if recorder == nil {
		recorder = metrics.Noop()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    recorder,
		logger:     logger.With(slog.String("component", "upstream")),
	}
}

// FetchServerSnapshot fetches the server with its online players and their
// sessions in a single request
func (c *Client) FetchServerSnapshot(ctx context.Context, serverID string) (*ServerSnapshot, error) {
	path := "/servers/" + url.PathEscape(serverID)
	query := url.Values{"include": {"player,session"}}

	body, reqURL, err := c.get(ctx, OpFetchServer, path, query)
	if err != nil {
		return nil, err
	}

	snap, err := decodeServerDocument(body)
	if err != nil {
		return nil, &Error{Op: OpFetchServer, URL: reqURL, Message: "malformed response", Err: err}
	}

	for id, fault := range snap.Faults {
		c.logger.Warn("malformed upstream entry",
			slog.String("upstream_id", id),
			slog.String("error", fault.Error()),
		)
	}

	return snap, nil
}

// SearchPlayers looks players up by name, in upstream relevance order
func (c *Client) SearchPlayers(ctx context.Context, name string) ([]Player, error) {
	query := url.Values{
		"filter[search]": {name},
		"page[size]":     {fmt.Sprint(searchPageSize)},
	}

	body, reqURL, err := c.get(ctx, OpSearchPlayers, "/players", query)
	if err != nil {
		return nil, err
	}

	players, skipped, err := decodePlayerList(body)
	if err != nil {
		return nil, &Error{Op: OpSearchPlayers, URL: reqURL, Message: "malformed response", Err: err}
	}
	if skipped > 0 {
		c.logger.Warn("skipped malformed search results", slog.Int("count", skipped))
	}

	return players, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, string, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, reqURL, &Error{Op: op, URL: reqURL, Message: "rate limiter", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, reqURL, &Error{Op: op, URL: reqURL, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("upstream request", slog.String("op", op), slog.String("url", reqURL))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstreamRequest(op, 0, time.Since(start))
		c.logger.Error("upstream request failed", slog.String("op", op), slog.String("error", err.Error()))
		return nil, reqURL, &Error{Op: op, URL: reqURL, Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstreamRequest(op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, reqURL, &Error{Op: op, URL: reqURL, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	c.logger.Debug("upstream response",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Error("upstream error response",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return nil, reqURL, &Error{Op: op, URL: reqURL, StatusCode: resp.StatusCode, Message: msg}
	}

	return body, reqURL, nil
}
