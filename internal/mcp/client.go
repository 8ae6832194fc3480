// Package mcp is the gateway to the catalog/order backend. Every
// operation is one POST of a {tool, arguments, meta} envelope to the
// backend's /call endpoint; the response comes back as a Result that
// is always usable — transport and HTTP failures are folded into an
// error-status envelope instead of bubbling up, so a chat turn can
// degrade to an apology line rather than die.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pescheria-bot/internal/cache"
	"pescheria-bot/internal/metrics"

	"log/slog"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultCatalogTTL = 5 * time.Minute
	apiKeyHeader      = "X-MCP-KEY"
)

// Known backend tools. The cart_* and greeting/help tags never reach
// the wire; they are resolved locally by the flow.
const (
	ToolProductsSearch = "products_search"
	ToolProductsByID   = "products_byid"
	ToolCustomersMe    = "customers_me"
	ToolOrdersCreate   = "orders_create"
)

// Client provides typed access to the backend bridge.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	timeout    time.Duration
	retries    int
	http       *http.Client
	metrics    *metrics.Metrics
	cache      *cache.Redis
	catalogTTL time.Duration
}

// Config holds gateway configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retries    int
	CatalogTTL time.Duration
}

// New creates a gateway client. cache may be nil; the catalog
// snapshot then skips redis.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:5000/api/mcp"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	catalogTTL := cfg.CatalogTTL
	if catalogTTL <= 0 {
		catalogTTL = defaultCatalogTTL
	}
	return &Client{
		logger:     logger.With("component", "mcp"),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		retries:    retries,
		http:       &http.Client{Timeout: timeout},
		metrics:    m,
		cache:      redis,
		catalogTTL: catalogTTL,
	}
}

type envelope struct {
	Tool      string            `json:"tool"`
	Arguments any               `json:"arguments"`
	Meta      map[string]string `json:"meta"`
}

// Call sends one tool envelope and always returns a usable Result:
// transport errors, HTTP errors and decode failures become an
// error-status Result with a client_error message.
func (c *Client) Call(ctx context.Context, tool string, args any, telegramUserID string) *Result {
	if args == nil {
		args = map[string]any{}
	}
	payload := envelope{
		Tool:      tool,
		Arguments: args,
		Meta:      map[string]string{"telegramUserId": telegramUserID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.countError()
		return errorResult(fmt.Sprintf("client_error: encode payload: %v", err))
	}

	raw, err := c.post(ctx, tool, body)
	if err != nil {
		c.logger.Warn("tool call failed", "tool", tool, "error", err)
		c.countError()
		return errorResult(fmt.Sprintf("client_error: %v", err))
	}

	res, err := ParseResult(raw)
	if err != nil {
		c.logger.Warn("tool response unreadable", "tool", tool, "error", err)
		c.countError()
		return errorResult(fmt.Sprintf("client_error: decode response: %v", err))
	}
	return res
}

// post runs the request with limited retries: one extra attempt
// on transport errors and 5xx responses, never on 4xx.
func (c *Client) post(ctx context.Context, tool string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		raw, status, err := c.doOnce(ctx, tool, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if status >= 500 {
			lastErr = fmt.Errorf("backend status %d: %s", status, snippet(raw))
			continue
		}
		if status >= 400 {
			return nil, fmt.Errorf("backend status %d: %s", status, snippet(raw))
		}
		return raw, nil
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, tool string, body []byte) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ToolRequests.WithLabelValues(tool, "error").Inc()
		}
		return nil, 0, fmt.Errorf("mcp request: %w", err)
	}
	defer resp.Body.Close()

	statusLabel := fmt.Sprintf("%d", resp.StatusCode)
	if c.metrics != nil {
		c.metrics.ToolRequests.WithLabelValues(tool, statusLabel).Inc()
		c.metrics.ToolLatency.WithLabelValues(tool, statusLabel).Observe(time.Since(start).Seconds())
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// FullCatalog fetches the unfiltered product list used to build the
// catalog index, going through redis when available so concurrent
// refreshes across instances share one backend hit.
func (c *Client) FullCatalog(ctx context.Context) ([]Item, error) {
	const cacheKey = "mcp:catalog:full"
	if c.cache != nil {
		var cached []Item
		ok, err := c.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			c.logger.Warn("read catalog cache failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	res := c.Call(ctx, ToolProductsSearch, map[string]any{"onlyOnOffer": false}, "")
	if res.IsError() {
		return nil, fmt.Errorf("catalog search: %s", res.Message)
	}
	items := res.Items()

	if c.cache != nil && len(items) > 0 {
		if err := c.cache.SetJSON(ctx, cacheKey, items, c.catalogTTL); err != nil {
			c.logger.Warn("set catalog cache failed", "error", err)
		}
	}
	return items, nil
}

func (c *Client) countError() {
	if c.metrics != nil {
		c.metrics.Errors.WithLabelValues("mcp").Inc()
	}
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
