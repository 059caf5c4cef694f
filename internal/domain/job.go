package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType names a provisioning job the worker knows how to execute.
type JobType string

const (
	JobProvisionMailbox      JobType = "provision_mailbox"
	JobDeprovisionMailbox    JobType = "deprovision_mailbox"
	JobChangeMailboxPassword JobType = "change_mailbox_password"
	JobVerifyDNS             JobType = "verify_dns"
)

// Job is one unit of asynchronous work on the durable queue. Delivery is
// at-least-once, so every handler must be idempotent.
//
// Password is only ever present transiently, between enqueue and execution;
// it is scrubbed before a job is persisted anywhere long-lived.
type Job struct {
	ID            string    `json:"job_id"`
	Type          JobType   `json:"job_type"`
	DedupKey      string    `json:"dedup_key"`
	TenantID      uuid.UUID `json:"tenant_id"`
	UserID        uuid.UUID `json:"user_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Password      string    `json:"password,omitempty"`
	Attempt       int       `json:"attempt"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	FailureReason string    `json:"failure_reason,omitempty"`

	// StreamMessageID is the queue-assigned delivery id, used for acknowledgement.
	StreamMessageID string `json:"-"`
}

// JobDedupKey builds the key used to collapse duplicate concurrent jobs
// targeting the same entity: tenant + job type + target id.
func JobDedupKey(tenantID uuid.UUID, jobType JobType, targetID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, jobType, targetID)
}

// SupersedeKey marks a user whose pending provision work must not run because
// a deprovision has been requested for them.
func SupersedeKey(userID uuid.UUID) string {
	return "supersede:user:" + userID.String()
}

// ConsumerGroupInfo describes one consumer group on the job stream.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// ConsumerInfo describes a single worker within a consumer group.
type ConsumerInfo struct {
	Name    string        `json:"name"`
	Pending int64         `json:"pending"`
	Idle    time.Duration `json:"idle_ms"`
}

// PendingJobSummary summarizes undelivered-but-unacknowledged jobs per group.
type PendingJobSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}
