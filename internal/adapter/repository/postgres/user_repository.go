package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/user/tenant-provisioner/internal/domain"
)

const userColumns = `id, tenant_id, email, name, role, alert_addon, account_status,
	account_error, encrypted_password, quota_mb, used_mb, last_webmail_login,
	removed_at, created_at, updated_at`

// UserRepository implements domain.UserRepository for PostgreSQL.
type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewUserRepository(db *sql.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, name, role, alert_addon, account_status,
			account_error, encrypted_password, quota_mb, used_mb, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.TenantID, u.Email, u.Name, u.Role, u.AlertAddon, u.AccountStatus,
		nullString(u.AccountError), nullString(u.EncryptedPassword), u.QuotaMB, u.UsedMB,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND removed_at IS NULL ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users SET email = $2, name = $3, role = $4, alert_addon = $5,
			account_status = $6, account_error = $7, encrypted_password = $8,
			quota_mb = $9, used_mb = $10, updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Role, u.AlertAddon, u.AccountStatus,
		nullString(u.AccountError), nullString(u.EncryptedPassword), u.QuotaMB, u.UsedMB,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepository) UpdateAccountStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus, reason string) error {
	query := `UPDATE users SET account_status = $2, account_error = $3, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, nullString(reason))
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepository) SetEncryptedPassword(ctx context.Context, id uuid.UUID, encrypted string) error {
	query := `UPDATE users SET encrypted_password = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, nullString(encrypted))
	if err != nil {
		return fmt.Errorf("failed to set encrypted password: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepository) MarkRemoved(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET removed_at = NOW(), updated_at = NOW() WHERE id = $1 AND removed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark user removed: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepository) TouchWebmailLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_webmail_login = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch webmail login: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepository) scanOne(row rowScanner) (*domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var accountError, encryptedPassword sql.NullString
	var lastLogin, removedAt sql.NullTime

	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.AlertAddon,
		&u.AccountStatus, &accountError, &encryptedPassword, &u.QuotaMB, &u.UsedMB,
		&lastLogin, &removedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.AccountError = accountError.String
	u.EncryptedPassword = encryptedPassword.String
	if lastLogin.Valid {
		u.LastWebmailLogin = &lastLogin.Time
	}
	if removedAt.Valid {
		u.RemovedAt = &removedAt.Time
	}
	return &u, nil
}
