package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/user/tenant-provisioner/internal/domain"
)

// Resolver is the subset of net.Resolver the verifier needs. It only reads
// DNS; nothing here mutates any zone.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
}

// CheckRecord resolves one planned record against live DNS and reports whether
// the expected value is present, with a reason when it is not. Resolver errors
// are reported as an unverified record, never as a failure of the run itself.
func CheckRecord(ctx context.Context, resolver Resolver, domainName string, rec domain.DNSRecord) (bool, string) {
	fqdn := rec.FQDN(domainName)

	switch rec.Type {
	case domain.RecordMX:
		mxs, err := resolver.LookupMX(ctx, fqdn)
		if err != nil {
			return false, lookupFailure("MX", fqdn, err)
		}
		for _, mx := range mxs {
			if valuesMatch(mx.Host, rec.ExpectedValue) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("no MX record at %s matches %q", fqdn, rec.ExpectedValue)

	case domain.RecordTXT:
		txts, err := resolver.LookupTXT(ctx, fqdn)
		if err != nil {
			return false, lookupFailure("TXT", fqdn, err)
		}
		for _, txt := range txts {
			if valuesMatch(txt, rec.ExpectedValue) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("no TXT record at %s matches %q", fqdn, rec.ExpectedValue)

	case domain.RecordCNAME:
		cname, err := resolver.LookupCNAME(ctx, fqdn)
		if err != nil {
			return false, lookupFailure("CNAME", fqdn, err)
		}
		if valuesMatch(cname, rec.ExpectedValue) {
			return true, ""
		}
		return false, fmt.Sprintf("CNAME at %s resolves to %q, expected %q", fqdn, cname, rec.ExpectedValue)

	default:
		return false, fmt.Sprintf("unsupported record type %q", rec.Type)
	}
}

func lookupFailure(recordType, fqdn string, err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return fmt.Sprintf("no %s record found at %s", recordType, fqdn)
	}
	return fmt.Sprintf("%s lookup for %s failed: %v", recordType, fqdn, err)
}

// valuesMatch compares a resolved value against the expected one using a
// containment check in both directions. This tolerates formatting differences
// (registrars appending SPF mechanisms, trailing dots) at the cost of false
// positives on short generic substrings.
func valuesMatch(resolved, expected string) bool {
	resolved = normalize(resolved)
	expected = normalize(expected)
	if resolved == "" || expected == "" {
		return false
	}
	return strings.Contains(resolved, expected) || strings.Contains(expected, resolved)
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(v), "."))
}
