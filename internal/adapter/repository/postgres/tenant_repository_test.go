package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/user/tenant-provisioner/internal/domain"
)

var tenantRows = []string{
	"id", "slug", "name", "domain", "domain_management_mode", "domain_status",
	"domain_verified_at", "uses_temporary_domain", "temporary_subdomain", "seat_count",
	"alert_addon_count", "billing_customer_ref", "billing_subscription_ref", "created_at", "updated_at",
}

func TestTenantRepository_FindBySlug(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewTenantRepository(db, logger)
	id := uuid.New()
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM tenants WHERE slug = \$1`).
			WithArgs("acme").
			WillReturnRows(sqlmock.NewRows(tenantRows).AddRow(
				id, "acme", "Acme Inc", "acme.com", "self_managed", "dns_pending",
				nil, false, nil, 3, 1, "cus_123", "sub_123", now, now,
			))

		tenant, err := repo.FindBySlug(context.Background(), "acme")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tenant.Slug != "acme" || tenant.Domain != "acme.com" {
			t.Errorf("unexpected tenant: %+v", tenant)
		}
		if tenant.SeatCount != 3 || tenant.AlertAddonCount != 1 {
			t.Errorf("unexpected counters: %+v", tenant)
		}
		if tenant.DomainStatus != domain.DomainDNSPending {
			t.Errorf("unexpected domain status: %q", tenant.DomainStatus)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM tenants WHERE slug = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(tenantRows))

		_, err := repo.FindBySlug(context.Background(), "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTenantRepository_Create_DuplicateSlug(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewTenantRepository(db, logger)

	mock.ExpectExec(`INSERT INTO tenants`).
		WillReturnError(&pq.Error{Code: uniqueViolationCode})

	err = repo.Create(context.Background(), &domain.Tenant{
		ID:   uuid.New(),
		Slug: "acme",
		Name: "Acme Inc",
	})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTenantRepository_AdjustCounters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewTenantRepository(db, logger)
	id := uuid.New()
	now := time.Now()

	t.Run("Applies Deltas Atomically", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE tenants SET seat_count = seat_count \+ \$2`).
			WithArgs(id, 1, 1).
			WillReturnRows(sqlmock.NewRows(tenantRows).AddRow(
				id, "acme", "Acme Inc", "acme.com", "self_managed", "verified",
				now, false, nil, 4, 2, "cus_123", "sub_123", now, now,
			))

		tenant, err := repo.AdjustCounters(context.Background(), id, 1, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tenant.SeatCount != 4 || tenant.AlertAddonCount != 2 {
			t.Errorf("unexpected counters after adjust: %+v", tenant)
		}
	})

	t.Run("Constraint Violation Is A Validation Error", func(t *testing.T) {
		// The guarded UPDATE matches no row; the follow-up lookup finds the
		// tenant, so the adjustment itself was rejected.
		mock.ExpectQuery(`UPDATE tenants SET seat_count = seat_count \+ \$2`).
			WithArgs(id, 0, 1).
			WillReturnRows(sqlmock.NewRows(tenantRows))
		mock.ExpectQuery(`SELECT .+ FROM tenants WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(tenantRows).AddRow(
				id, "acme", "Acme Inc", "acme.com", "self_managed", "verified",
				now, false, nil, 1, 1, "cus_123", "sub_123", now, now,
			))

		_, err := repo.AdjustCounters(context.Background(), id, 0, 1)
		if !domain.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
