// Package llm talks to the OpenAI chat completions API. The model is
// asked to answer as the shop assistant and, when the customer wants
// an action performed, to embed a single-object tool JSON in its
// reply; downstream code treats that output as untrusted text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pescheria-bot/internal/metrics"

	"log/slog"
)

const (
	defaultAPIBase = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
)

// Message is one prior turn given to the model as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls the chat completions endpoint.
type Client struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	httpClient *http.Client
	apiBase    string
	apiKey     string
	model      string
	timeout    time.Duration
}

// Config holds model client configuration.
type Config struct {
	APIBase string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New creates an OpenAI client.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		logger:     logger.With("component", "llm"),
		metrics:    m,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
	}
}

// Complete sends the system prompt, conversation history and the new
// user message, returning the model's raw reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []Message, userText string) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userText})

	payload := chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.count("error")
		return "", fmt.Errorf("chat completions http: %w", err)
	}
	defer resp.Body.Close()

	status := fmt.Sprintf("%d", resp.StatusCode)
	if c.metrics != nil {
		c.metrics.ModelLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.count("error")
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.count(status)
		return "", fmt.Errorf("chat completions failed: status=%d body=%s", resp.StatusCode, snippet(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.count("error")
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	for _, choice := range parsed.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			c.count("success")
			return text, nil
		}
	}
	c.count("empty")
	return "", fmt.Errorf("no completion text found")
}

func (c *Client) count(status string) {
	if c.metrics != nil {
		c.metrics.ModelRequests.WithLabelValues(status).Inc()
	}
	if status != "success" && c.metrics != nil {
		c.metrics.Errors.WithLabelValues("llm").Inc()
	}
}

func snippet(raw []byte) string {
	s := string(raw)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
