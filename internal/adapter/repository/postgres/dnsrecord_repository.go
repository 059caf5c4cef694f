package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/tenant-provisioner/internal/domain"
)

const dnsRecordColumns = `id, tenant_id, record_type, host, expected_value, priority, ttl,
	position, is_verified, check_error, last_checked_at, created_at`

// DNSRecordRepository implements domain.DNSRecordRepository for PostgreSQL.
type DNSRecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDNSRecordRepository(db *sql.DB, logger *slog.Logger) *DNSRecordRepository {
	return &DNSRecordRepository{db: db, logger: logger}
}

// ReplaceForTenant swaps the tenant's record set atomically. The planner's
// output is deterministic, so regenerating after a domain change is always
// safe.
func (r *DNSRecordRepository) ReplaceForTenant(ctx context.Context, tenantID uuid.UUID, records []domain.DNSRecord) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	if _, err := txn.ExecContext(ctx, `DELETE FROM dns_records WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete old dns records: %w", err)
	}

	insert := `
		INSERT INTO dns_records (id, tenant_id, record_type, host, expected_value, priority,
			ttl, position, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, NOW())`

	for _, rec := range records {
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		var priority sql.NullInt64
		if rec.Priority != nil {
			priority = sql.NullInt64{Int64: int64(*rec.Priority), Valid: true}
		}
		if _, err := txn.ExecContext(ctx, insert,
			id, tenantID, rec.Type, rec.Host, rec.ExpectedValue, priority, rec.TTL, rec.Position,
		); err != nil {
			return fmt.Errorf("failed to insert dns record: %w", err)
		}
	}

	return txn.Commit()
}

func (r *DNSRecordRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.DNSRecord, error) {
	query := `SELECT ` + dnsRecordColumns + ` FROM dns_records WHERE tenant_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dns records: %w", err)
	}
	defer rows.Close()

	var records []domain.DNSRecord
	for rows.Next() {
		var rec domain.DNSRecord
		var priority sql.NullInt64
		var checkError sql.NullString
		var lastChecked sql.NullTime

		err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.Host, &rec.ExpectedValue,
			&priority, &rec.TTL, &rec.Position, &rec.IsVerified, &checkError, &lastChecked,
			&rec.CreatedAt)
		if err != nil {
			return nil, err
		}

		if priority.Valid {
			p := int(priority.Int64)
			rec.Priority = &p
		}
		rec.CheckError = checkError.String
		if lastChecked.Valid {
			rec.LastCheckedAt = &lastChecked.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *DNSRecordRepository) UpdateVerification(ctx context.Context, id uuid.UUID, verified bool, checkError string, checkedAt time.Time) error {
	query := `UPDATE dns_records SET is_verified = $2, check_error = $3, last_checked_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, verified, nullString(checkError), checkedAt)
	if err != nil {
		return fmt.Errorf("failed to update dns record verification: %w", err)
	}
	return requireRow(res)
}
