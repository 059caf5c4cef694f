package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/dns"
	"github.com/user/tenant-provisioner/internal/domain"
)

// VerifyDomainUseCase re-checks every expected DNS record of a tenant's
// custom domain and flips the domain to verified once all of them resolve.
type VerifyDomainUseCase struct {
	tenantRepo domain.TenantRepository
	recordRepo domain.DNSRecordRepository
	resolver   dns.Resolver
	dnsTimeout time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewVerifyDomainUseCase(tenantRepo domain.TenantRepository, recordRepo domain.DNSRecordRepository, resolver dns.Resolver, dnsTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *VerifyDomainUseCase {
	return &VerifyDomainUseCase{
		tenantRepo: tenantRepo,
		recordRepo: recordRepo,
		resolver:   resolver,
		dnsTimeout: dnsTimeout,
		logger:     logger.With("component", "domain_verifier"),
		metrics:    m,
	}
}

// Verify checks each record independently and persists the per-record
// result, so a partially configured domain reports exactly which records
// still need fixing. Returns the updated record set.
func (uc *VerifyDomainUseCase) Verify(ctx context.Context, tenantID uuid.UUID) ([]domain.DNSRecord, error) {
	tenant, err := uc.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Domain == "" {
		return nil, domain.Validationf("tenant %s has no custom domain configured", tenant.Slug)
	}

	records, err := uc.recordRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	allVerified := len(records) > 0

	for i := range records {
		rec := &records[i]

		checkCtx, cancel := context.WithTimeout(ctx, uc.dnsTimeout)
		ok, reason := dns.CheckRecord(checkCtx, uc.resolver, tenant.Domain, *rec)
		cancel()

		rec.IsVerified = ok
		rec.CheckError = reason
		rec.LastCheckedAt = &now

		if ok {
			uc.metrics.DNSChecksTotal.WithLabelValues("match").Inc()
		} else {
			uc.metrics.DNSChecksTotal.WithLabelValues("mismatch").Inc()
			allVerified = false
			uc.logger.Debug("dns record not yet valid",
				"tenant_id", tenantID, "type", rec.Type, "host", rec.DisplayHost(tenant.Domain), "reason", reason)
		}

		if err := uc.recordRepo.UpdateVerification(ctx, rec.ID, ok, reason, now); err != nil {
			return nil, err
		}
	}

	if allVerified {
		if tenant.DomainStatus != domain.DomainVerified {
			if err := uc.tenantRepo.UpdateDomainStatus(ctx, tenantID, domain.DomainVerified, &now); err != nil {
				return nil, err
			}
			uc.metrics.DomainsVerified.Inc()
			uc.logger.Info("domain fully verified", "tenant_id", tenantID, "domain", tenant.Domain)
		}
	} else if tenant.DomainStatus == domain.DomainPending {
		// First check ran; the tenant is now waiting on DNS propagation.
		if err := uc.tenantRepo.UpdateDomainStatus(ctx, tenantID, domain.DomainDNSPending, nil); err != nil {
			return nil, err
		}
	}

	return records, nil
}
