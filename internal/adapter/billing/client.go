package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/user/tenant-provisioner/internal/domain"
)

// Client wraps the external billing provider. Calls are rate limited client
// side so that bursty reconciliation runs stay below the provider's quota.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ domain.BillingClient = (*Client)(nil)

func NewClient(baseURL, apiKey string, rps float64, timeout time.Duration, logger *slog.Logger) *Client {
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With("component", "billing"),
	}
}

func (c *Client) CreateCustomer(ctx context.Context, tenantRef, email, name string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var result struct {
		CustomerRef string `json:"customer_ref"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"external_ref": tenantRef, "email": email, "name": name}).
		SetResult(&result).
		Post("/customers")
	if err != nil {
		return "", domain.Transient(fmt.Errorf("create customer request failed: %w", err))
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("billing api returned %d creating customer for %s", resp.StatusCode(), tenantRef)
	}
	return result.CustomerRef, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerRef string, items map[domain.BillingDimension]int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	lineItems := make([]map[string]any, 0, len(items))
	for dim, qty := range items {
		lineItems = append(lineItems, map[string]any{"dimension": string(dim), "quantity": qty})
	}

	var result struct {
		SubscriptionRef string `json:"subscription_ref"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"customer_ref": customerRef, "items": lineItems}).
		SetResult(&result).
		Post("/subscriptions")
	if err != nil {
		return "", domain.Transient(fmt.Errorf("create subscription request failed: %w", err))
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("billing api returned %d creating subscription for %s", resp.StatusCode(), customerRef)
	}
	return result.SubscriptionRef, nil
}

// SetLineItemQuantity pushes the absolute quantity for one dimension. The
// provider treats this as a full replacement, never an increment, which keeps
// concurrent pushes convergent regardless of delivery order.
func (c *Client) SetLineItemQuantity(ctx context.Context, subscriptionRef string, dimension domain.BillingDimension, quantity int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"quantity": quantity}).
		Put("/subscriptions/" + subscriptionRef + "/items/" + string(dimension))
	if err != nil {
		return domain.Transient(fmt.Errorf("set quantity request failed: %w", err))
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("billing api returned %d setting %s=%d on %s", resp.StatusCode(), dimension, quantity, subscriptionRef)
	}

	c.logger.Debug("pushed line item quantity",
		"subscription", subscriptionRef, "dimension", dimension, "quantity", quantity)
	return nil
}
