package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TenantRepository defines typed persistence for tenants. Every field set is
// explicit; there is no schema-less access path.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]Tenant, error)

	// AdjustCounters atomically applies deltas to the seat and add-on counters
	// and returns the tenant with the resulting values. The store enforces
	// seat_count >= 0, alert_addon_count >= 0 and alert_addon_count <= seat_count.
	AdjustCounters(ctx context.Context, id uuid.UUID, seatDelta, addonDelta int) (*Tenant, error)

	// UpdateDomainStatus moves the domain through its verification lifecycle.
	// verifiedAt is only set when status is DomainVerified.
	UpdateDomainStatus(ctx context.Context, id uuid.UUID, status DomainStatus, verifiedAt *time.Time) error
}

// UserRepository defines typed persistence for users and their mailbox state.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]User, error)
	Update(ctx context.Context, u *User) error
	UpdateAccountStatus(ctx context.Context, id uuid.UUID, status AccountStatus, reason string) error
	SetEncryptedPassword(ctx context.Context, id uuid.UUID, encrypted string) error
	MarkRemoved(ctx context.Context, id uuid.UUID) error
	TouchWebmailLogin(ctx context.Context, id uuid.UUID) error
}

// DNSRecordRepository defines typed persistence for planned DNS records.
type DNSRecordRepository interface {
	// ReplaceForTenant drops the tenant's existing record set and installs a
	// freshly planned one in a single transaction.
	ReplaceForTenant(ctx context.Context, tenantID uuid.UUID, records []DNSRecord) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]DNSRecord, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, verified bool, checkError string, checkedAt time.Time) error
}

// APIKeyRepository validates API keys for the orchestrator's HTTP surface.
type APIKeyRepository interface {
	// IsValid checks if the provided API key is valid and active.
	// Implementations should handle caching to reduce database load.
	IsValid(ctx context.Context, key string) (bool, error)
}

// JobQueue is the durable, at-least-once provisioning queue.
type JobQueue interface {
	// Enqueue appends a job to the stream.
	Enqueue(ctx context.Context, job Job) error

	// ReadBatch reads up to count undelivered jobs for a consumer.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]Job, error)

	// Acknowledge marks delivered jobs as processed.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDead parks jobs that exhausted their retries on the dead-letter
	// stream for operator intervention. Secret fields are scrubbed first.
	MoveToDead(ctx context.Context, jobs []Job) error
}

// JobQueueAdmin exposes read-only introspection of the queue's consumer groups.
type JobQueueAdmin interface {
	GetGroupInfo(ctx context.Context) ([]ConsumerGroupInfo, error)
	GetConsumerInfo(ctx context.Context, group string) ([]ConsumerInfo, error)
	GetPendingSummary(ctx context.Context, group string) (*PendingJobSummary, error)
}

// DedupStore is the shared key store backing job deduplication and the
// deprovision-supersedes-provision ordering rule. It is an injectable
// abstraction so the same logic works single-instance or distributed.
type DedupStore interface {
	// SetNX stores value under key only if the key is absent. Returns whether
	// the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Set stores value unconditionally.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the stored value, or "" when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, key string) error
}
