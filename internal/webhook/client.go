// Package webhook performs the outbound HTTP calls of webhook and
// api_request blocks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"botflow/internal/lib/sl"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// Client is the outbound HTTP gateway of the flow engine. One shared
// http.Client with a hard request timeout; slow tenant endpoints must not
// stall a chat's pass for longer than that.
type Client struct {
	http *http.Client
	log  *slog.Logger
}

// NewClient creates the outbound HTTP gateway.
func NewClient(log *slog.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: defaultTimeout},
		log:  log.With(sl.Module("webhook")),
	}
}

// SendWebhook posts the payload as JSON and only checks for a 2xx reply.
func (c *Client) SendWebhook(ctx context.Context, url string, payload map[string]any) error {
	status, _, err := c.Request(ctx, http.MethodPost, url, nil, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook %s: status %d", url, status)
	}
	return nil
}

// Request performs one HTTP call and returns the status with the response
// body. Non-2xx statuses are returned to the caller, not treated as errors;
// api_request blocks expose them to the bot author.
func (c *Client) Request(ctx context.Context, method, url string, headers map[string]string, body map[string]any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("encoding body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, "", fmt.Errorf("reading response: %w", err)
	}

	c.log.Debug("request done",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, string(raw), nil
}
