package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/user/tenant-provisioner/internal/domain"
)

const uniqueViolationCode = "23505"

const tenantColumns = `id, slug, name, domain, domain_management_mode, domain_status,
	domain_verified_at, uses_temporary_domain, temporary_subdomain, seat_count,
	alert_addon_count, billing_customer_ref, billing_subscription_ref, created_at, updated_at`

// TenantRepository implements domain.TenantRepository for PostgreSQL.
type TenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTenantRepository(db *sql.DB, logger *slog.Logger) *TenantRepository {
	return &TenantRepository{db: db, logger: logger}
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, slug, name, domain, domain_management_mode, domain_status,
			domain_verified_at, uses_temporary_domain, temporary_subdomain, seat_count,
			alert_addon_count, billing_customer_ref, billing_subscription_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Slug, t.Name, nullString(t.Domain), t.DomainManagementMode, t.DomainStatus,
		nullTime(t.DomainVerifiedAt), t.UsesTemporaryDomain, nullString(t.TemporarySubdomain),
		t.SeatCount, t.AlertAddonCount, nullString(t.BillingCustomerRef),
		nullString(t.BillingSubscriptionRef),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, slug))
}

func (r *TenantRepository) Update(ctx context.Context, t *domain.Tenant) error {
	query := `
		UPDATE tenants SET slug = $2, name = $3, domain = $4, domain_management_mode = $5,
			domain_status = $6, domain_verified_at = $7, uses_temporary_domain = $8,
			temporary_subdomain = $9, billing_customer_ref = $10, billing_subscription_ref = $11,
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		t.ID, t.Slug, t.Name, nullString(t.Domain), t.DomainManagementMode, t.DomainStatus,
		nullTime(t.DomainVerifiedAt), t.UsesTemporaryDomain, nullString(t.TemporarySubdomain),
		nullString(t.BillingCustomerRef), nullString(t.BillingSubscriptionRef),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return requireRow(res)
}

func (r *TenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// AdjustCounters applies both deltas in a single statement so concurrent seat
// changes cannot interleave partial updates. The WHERE clause enforces that
// counters stay non-negative and that the add-on count never exceeds seats.
func (r *TenantRepository) AdjustCounters(ctx context.Context, id uuid.UUID, seatDelta, addonDelta int) (*domain.Tenant, error) {
	query := `
		UPDATE tenants SET seat_count = seat_count + $2, alert_addon_count = alert_addon_count + $3,
			updated_at = NOW()
		WHERE id = $1
			AND seat_count + $2 >= 0
			AND alert_addon_count + $3 >= 0
			AND alert_addon_count + $3 <= seat_count + $2
		RETURNING ` + tenantColumns

	t, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, seatDelta, addonDelta))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Distinguish a missing tenant from a rejected adjustment.
			if _, findErr := r.FindByID(ctx, id); findErr == nil {
				return nil, domain.Validationf("counter adjustment violates seat constraints")
			}
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TenantRepository) UpdateDomainStatus(ctx context.Context, id uuid.UUID, status domain.DomainStatus, verifiedAt *time.Time) error {
	query := `UPDATE tenants SET domain_status = $2, domain_verified_at = $3, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, nullTime(verifiedAt))
	if err != nil {
		return fmt.Errorf("failed to update domain status: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TenantRepository) scanOne(row rowScanner) (*domain.Tenant, error) {
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var t domain.Tenant
	var domainName, tempSubdomain, customerRef, subscriptionRef sql.NullString
	var verifiedAt sql.NullTime

	err := row.Scan(&t.ID, &t.Slug, &t.Name, &domainName, &t.DomainManagementMode, &t.DomainStatus,
		&verifiedAt, &t.UsesTemporaryDomain, &tempSubdomain, &t.SeatCount,
		&t.AlertAddonCount, &customerRef, &subscriptionRef, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Domain = domainName.String
	t.TemporarySubdomain = tempSubdomain.String
	t.BillingCustomerRef = customerRef.String
	t.BillingSubscriptionRef = subscriptionRef.String
	if verifiedAt.Valid {
		t.DomainVerifiedAt = &verifiedAt.Time
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
