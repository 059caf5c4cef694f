package domain

import "context"

// MailboxInfo mirrors what the mail-control API reports about one account.
type MailboxInfo struct {
	Email   string `json:"email"`
	QuotaMB int64  `json:"quota_mb"`
	UsedMB  int64  `json:"used_mb"`
}

// MailPlatformClient is the external mail-hosting control API. Already-exists
// and not-found responses surface as ErrMailboxExists / ErrMailboxNotFound so
// handlers can treat them as idempotent success; network failures and 5xx
// responses come back wrapped as TransientError.
type MailPlatformClient interface {
	CreateMailbox(ctx context.Context, email, password string, quotaMB int64) error
	DeleteMailbox(ctx context.Context, email string) error
	SetPassword(ctx context.Context, email, password string) error
	ListMailboxes(ctx context.Context) ([]MailboxInfo, error)
}

// BillingClient is the external subscription billing API. Quantities are
// always absolute values, never deltas.
type BillingClient interface {
	CreateCustomer(ctx context.Context, tenantRef, email, name string) (customerRef string, err error)
	CreateSubscription(ctx context.Context, customerRef string, items map[BillingDimension]int) (subscriptionRef string, err error)
	SetLineItemQuantity(ctx context.Context, subscriptionRef string, dimension BillingDimension, quantity int) error
}

// MessagingClient sends templated notifications. Failures are logged and
// surfaced but never block the operation that triggered them.
type MessagingClient interface {
	SendTemplatedMessage(ctx context.Context, to, templateID string, variables map[string]string) error
}
