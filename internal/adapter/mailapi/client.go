package mailapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/user/tenant-provisioner/internal/domain"
)

// Client talks to the external mail-hosting control API. Network failures and
// 5xx responses come back as transient errors so the job queue retries them;
// explicit rejections are permanent and surface to the caller as-is.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ domain.MailPlatformClient = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "mailapi"),
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) String() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (c *Client) CreateMailbox(ctx context.Context, email, password string, quotaMB int64) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"email": email, "password": password, "quota_mb": quotaMB}).
		SetError(&apiErr).
		Post("/mailboxes")
	if err != nil {
		return domain.Transient(fmt.Errorf("create mailbox request failed: %w", err))
	}

	switch {
	case resp.StatusCode() == http.StatusConflict || apiErr.Code == "already_exists":
		return domain.ErrMailboxExists
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return domain.Transient(fmt.Errorf("mail api returned %d creating %s", resp.StatusCode(), email))
	default:
		return fmt.Errorf("mail api rejected mailbox creation for %s: %s", email, apiErr.String())
	}
}

func (c *Client) DeleteMailbox(ctx context.Context, email string) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete("/mailboxes/" + email)
	if err != nil {
		return domain.Transient(fmt.Errorf("delete mailbox request failed: %w", err))
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return domain.ErrMailboxNotFound
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return domain.Transient(fmt.Errorf("mail api returned %d deleting %s", resp.StatusCode(), email))
	default:
		return fmt.Errorf("mail api rejected mailbox deletion for %s: %s", email, apiErr.String())
	}
}

func (c *Client) SetPassword(ctx context.Context, email, password string) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"password": password}).
		SetError(&apiErr).
		Put("/mailboxes/" + email + "/password")
	if err != nil {
		return domain.Transient(fmt.Errorf("set password request failed: %w", err))
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return domain.ErrMailboxNotFound
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return domain.Transient(fmt.Errorf("mail api returned %d setting password for %s", resp.StatusCode(), email))
	default:
		return fmt.Errorf("mail api rejected password change for %s: %s", email, apiErr.String())
	}
}

func (c *Client) ListMailboxes(ctx context.Context) ([]domain.MailboxInfo, error) {
	var result struct {
		Mailboxes []domain.MailboxInfo `json:"mailboxes"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/mailboxes")
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("list mailboxes request failed: %w", err))
	}
	if !resp.IsSuccess() {
		return nil, domain.Transient(fmt.Errorf("mail api returned %d listing mailboxes", resp.StatusCode()))
	}
	return result.Mailboxes, nil
}
