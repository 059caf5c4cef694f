package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole defines the permission level of a user within a tenant.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

// AccountStatus is the lifecycle state of a user's mailbox on the external
// mail platform.
type AccountStatus string

const (
	AccountUnprovisioned AccountStatus = "unprovisioned"
	AccountPending       AccountStatus = "pending"
	AccountActive        AccountStatus = "active"
	AccountError         AccountStatus = "error"
)

// User is an employee of a tenant holding one billable seat and backing one
// mailbox account on the external mail platform.
type User struct {
	ID                uuid.UUID     `json:"id"`
	TenantID          uuid.UUID     `json:"tenant_id"`
	Email             string        `json:"email"`
	Name              string        `json:"name"`
	Role              UserRole      `json:"role"`
	AlertAddon        bool          `json:"alert_addon"`
	AccountStatus     AccountStatus `json:"account_status"`
	AccountError      string        `json:"account_error,omitempty"`
	EncryptedPassword string        `json:"-"`
	QuotaMB           int64         `json:"quota_mb"`
	UsedMB            int64         `json:"used_mb"`
	LastWebmailLogin  *time.Time    `json:"last_webmail_login,omitempty"`
	RemovedAt         *time.Time    `json:"removed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Removed reports whether the user has been taken out of the tenant. A removed
// user's mailbox is deprovisioned and any pending provision job is superseded.
func (u *User) Removed() bool {
	return u.RemovedAt != nil
}
