package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/pkg/keylock"
)

// BillingSyncer pushes seat and addon quantities to the billing provider.
// Quantities are always absolute: the syncer re-reads the tenant's counters
// from the database under a per-tenant lock and pushes that snapshot, so
// concurrent adjustments converge to the final stored value no matter how
// pushes interleave.
type BillingSyncer struct {
	tenantRepo domain.TenantRepository
	billing    domain.BillingClient
	locks      *keylock.KeyedMutex
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewBillingSyncer(tenantRepo domain.TenantRepository, billing domain.BillingClient, logger *slog.Logger, m *metrics.Metrics) *BillingSyncer {
	return &BillingSyncer{
		tenantRepo: tenantRepo,
		billing:    billing,
		locks:      keylock.New(),
		logger:     logger.With("component", "billing_syncer"),
		metrics:    m,
	}
}

// SyncQuantity re-reads the tenant and pushes the current counter for one
// billing dimension. Tenants without a subscription yet are skipped.
func (s *BillingSyncer) SyncQuantity(ctx context.Context, tenantID uuid.UUID, dim domain.BillingDimension) error {
	unlock := s.locks.Lock("billing:" + tenantID.String())
	defer unlock()

	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return err
	}

	if tenant.BillingSubscriptionRef == "" {
		s.logger.Warn("skipping billing sync, tenant has no subscription", "tenant_id", tenantID, "dimension", dim)
		return nil
	}

	quantity := tenant.CounterFor(dim)
	if err := s.billing.SetLineItemQuantity(ctx, tenant.BillingSubscriptionRef, dim, quantity); err != nil {
		s.metrics.BillingSyncTotal.WithLabelValues(string(dim), "error").Inc()
		s.logger.Error("failed to push billing quantity",
			"tenant_id", tenantID, "dimension", dim, "quantity", quantity, "error", err)
		return err
	}

	s.metrics.BillingSyncTotal.WithLabelValues(string(dim), "success").Inc()
	s.logger.Debug("pushed billing quantity", "tenant_id", tenantID, "dimension", dim, "quantity", quantity)
	return nil
}

// SyncBoth pushes both dimensions and reports every failure.
func (s *BillingSyncer) SyncBoth(ctx context.Context, tenantID uuid.UUID) error {
	return errors.Join(
		s.SyncQuantity(ctx, tenantID, domain.DimensionSeats),
		s.SyncQuantity(ctx, tenantID, domain.DimensionAlertAddon),
	)
}

// ReconcileAll walks every tenant and re-pushes both quantities. Run
// periodically to repair drift left behind by pushes that failed at write
// time.
func (s *BillingSyncer) ReconcileAll(ctx context.Context) error {
	tenants, err := s.tenantRepo.List(ctx)
	if err != nil {
		return err
	}

	var synced, failed int
	for _, tenant := range tenants {
		if tenant.BillingSubscriptionRef == "" {
			continue
		}
		if err := s.SyncBoth(ctx, tenant.ID); err != nil {
			failed++
			continue
		}
		synced++
	}

	s.logger.Info("billing reconciliation finished", "synced", synced, "failed", failed)
	return nil
}
