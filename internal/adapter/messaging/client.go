package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/user/tenant-provisioner/internal/domain"
)

// Client sends templated transactional messages through the messaging
// provider. Delivery failures are never fatal for the calling flow; callers
// log and continue.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ domain.MessagingClient = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "messaging"),
	}
}

func (c *Client) SendTemplatedMessage(ctx context.Context, to, templateID string, variables map[string]string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"to": to, "template_id": templateID, "variables": variables}).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("send message request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("messaging api returned %d sending %s to %s", resp.StatusCode(), templateID, to)
	}

	c.logger.Debug("sent templated message", "to", to, "template", templateID)
	return nil
}
