package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-chat-proxy/internal/config"
	"voice-chat-proxy/internal/metrics"
	"voice-chat-proxy/internal/model"
)

// ErrNoAPIKey is returned when the chat provider has no credentials.
var ErrNoAPIKey = errors.New("chat API key is not configured")

// maxErrorBody caps how much of a provider error body is echoed back.
const maxErrorBody = 2048

// APIError is a non-2xx answer from the chat completions API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat API %d: %s", e.StatusCode, e.Body)
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewChatClient creates a ChatClient for cfg.Chat.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewChatClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ChatClient {
	return &ChatClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
		},
		endpoint: cfg.Chat.APIBase + "/chat/completions",
		apiKey:   cfg.Chat.APIKey,
		logger:   logger.With("component", "chat_client"),
		metrics:  m,
	}
}

// Complete sends a completion request and returns the first choice's content,
// trimmed of surrounding whitespace.
func (c *ChatClient) Complete(ctx context.Context, creq *model.CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	payload, err := json.Marshal(creq)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("completion request", "model", creq.Model)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("", time.Since(start))
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(strconv.Itoa(resp.StatusCode), time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		text := string(body)
		if len(text) > maxErrorBody {
			// The cut may land inside a rune.
			text = strings.ToValidUTF8(text[:maxErrorBody], "")
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: text}
	}

	var cresp model.CompletionResponse
	if err := json.Unmarshal(body, &cresp); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cresp.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return strings.TrimSpace(cresp.Choices[0].Message.Content), nil
}

func (c *ChatClient) observe(status string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues("chat", http.MethodPost).Observe(d.Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues("chat", http.MethodPost, status).Inc()
	}
}
