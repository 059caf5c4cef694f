package dns

import (
	"regexp"
	"strings"

	"github.com/user/tenant-provisioner/internal/domain"
)

const defaultTTL = 3600

// MXPriority is the priority assigned to the planned MX record.
const MXPriority = 10

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// ValidateDomain rejects names that are not plausible registrable domains and
// returns the normalized form (lowercased, trailing dot stripped).
func ValidateDomain(name string) (string, error) {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if name == "" {
		return "", domain.Validationf("domain must not be empty")
	}
	if len(name) > 253 {
		return "", domain.Validationf("domain %q is too long", name)
	}
	if !domainPattern.MatchString(name) {
		return "", domain.Validationf("domain %q is not a valid domain name", name)
	}
	return name, nil
}

// PlanInput carries the mail-platform parameters the record set depends on.
type PlanInput struct {
	Domain        string
	PlatformHost  string // e.g. "mail.svc.net"
	DKIMSelector  string // e.g. "mail"; the DKIM TXT lives at <selector>._domainkey
	DKIMPublicKey string
}

// Plan computes the ordered DNS record set a tenant must publish for the
// given domain. The output is deterministic: identical inputs always produce
// identical records in identical order, so callers may diff consecutive plans.
func Plan(in PlanInput) ([]domain.DNSRecord, error) {
	name, err := ValidateDomain(in.Domain)
	if err != nil {
		return nil, err
	}
	if in.PlatformHost == "" {
		return nil, domain.Validationf("mail platform host must not be empty")
	}

	prio := MXPriority
	records := []domain.DNSRecord{
		{
			Type:          domain.RecordMX,
			Host:          domain.RootHost,
			ExpectedValue: in.PlatformHost,
			Priority:      &prio,
			TTL:           defaultTTL,
		},
		{
			Type:          domain.RecordTXT,
			Host:          domain.RootHost,
			ExpectedValue: "v=spf1 include:" + in.PlatformHost + " ~all",
			TTL:           defaultTTL,
		},
		{
			Type:          domain.RecordTXT,
			Host:          in.DKIMSelector + "._domainkey",
			ExpectedValue: "v=DKIM1; k=rsa; p=" + in.DKIMPublicKey,
			TTL:           defaultTTL,
		},
		{
			Type:          domain.RecordTXT,
			Host:          "_dmarc",
			ExpectedValue: "v=DMARC1; p=none; rua=mailto:postmaster@" + name,
			TTL:           defaultTTL,
		},
		{
			Type:          domain.RecordCNAME,
			Host:          "webmail",
			ExpectedValue: in.PlatformHost,
			TTL:           defaultTTL,
		},
	}

	for i := range records {
		records[i].Position = i
	}
	return records, nil
}
