package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordType is the DNS record type of a planned record.
type RecordType string

const (
	RecordMX    RecordType = "MX"
	RecordTXT   RecordType = "TXT"
	RecordCNAME RecordType = "CNAME"
)

// RootHost marks a record planned at the domain apex.
const RootHost = "@"

// DNSRecord is one record a tenant must publish for their domain to verify.
// The full set for a tenant is deleted and regenerated whenever the domain
// value changes; verification runs update records in place.
type DNSRecord struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	Type          RecordType `json:"record_type"`
	Host          string     `json:"host"` // "@" for the apex, otherwise a subdomain label
	ExpectedValue string     `json:"expected_value"`
	Priority      *int       `json:"priority,omitempty"` // MX only
	TTL           int        `json:"ttl"`
	Position      int        `json:"position"` // stable order within the planned set
	IsVerified    bool       `json:"is_verified"`
	CheckError    string     `json:"check_error,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// FQDN returns the fully-qualified name the record is expected at for the
// given domain. Apex records resolve against the domain itself.
func (r DNSRecord) FQDN(domain string) string {
	if r.Host == RootHost || r.Host == "" {
		return domain
	}
	return r.Host + "." + domain
}

// DisplayHost renders the host the way DNS control panels expect it.
func (r DNSRecord) DisplayHost(domain string) string {
	return strings.TrimSuffix(r.FQDN(domain), ".")
}
