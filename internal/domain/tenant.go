package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainManagementMode says who is responsible for publishing the tenant's
// DNS records: the tenant themselves, an agency acting for them, or nobody
// (temporary platform subdomains need no records).
type DomainManagementMode string

const (
	ManagementSelfManaged   DomainManagementMode = "self_managed"
	ManagementAgencyManaged DomainManagementMode = "agency_managed"
	ManagementNone          DomainManagementMode = "none"
)

// DomainStatus is the verification lifecycle state of a tenant's email domain.
type DomainStatus string

const (
	DomainUnset      DomainStatus = "unset"
	DomainPending    DomainStatus = "pending"
	DomainDNSPending DomainStatus = "dns_pending"
	DomainVerified   DomainStatus = "verified"
)

// BillingDimension identifies one billable quantity on the tenant's subscription.
type BillingDimension string

const (
	DimensionSeats      BillingDimension = "seats"
	DimensionAlertAddon BillingDimension = "alert_addon"
)

// Tenant is a customer company: the unit of billing and domain ownership.
//
// SeatCount and AlertAddonCount are the authoritative counters that billing
// synchronization pushes to the external provider as absolute quantities.
// AlertAddonCount can never exceed SeatCount: only a user holding a seat can
// carry the add-on.
type Tenant struct {
	ID                     uuid.UUID            `json:"id"`
	Slug                   string               `json:"slug"`
	Name                   string               `json:"name"`
	Domain                 string               `json:"domain,omitempty"` // empty until a custom domain is assigned
	DomainManagementMode   DomainManagementMode `json:"domain_management_mode"`
	DomainStatus           DomainStatus         `json:"domain_status"`
	DomainVerifiedAt       *time.Time           `json:"domain_verified_at,omitempty"`
	UsesTemporaryDomain    bool                 `json:"uses_temporary_domain"`
	TemporarySubdomain     string               `json:"temporary_subdomain,omitempty"`
	SeatCount              int                  `json:"seat_count"`
	AlertAddonCount        int                  `json:"alert_addon_count"`
	BillingCustomerRef     string               `json:"-"`
	BillingSubscriptionRef string               `json:"-"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

// MailDomain returns the domain mailboxes are actually addressed under.
func (t *Tenant) MailDomain() string {
	if t.UsesTemporaryDomain {
		return t.TemporarySubdomain
	}
	return t.Domain
}

// CounterFor returns the authoritative local counter for a billing dimension.
func (t *Tenant) CounterFor(dim BillingDimension) int {
	if dim == DimensionAlertAddon {
		return t.AlertAddonCount
	}
	return t.SeatCount
}
