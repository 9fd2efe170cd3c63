package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/secrets"
)

// TenantRepo is the durable tenant registry. Connection strings are
// encrypted with the vault before they touch the database. Rows are never
// physically removed; deletion is a status transition.
type TenantRepo struct {
	pool  *pgxpool.Pool
	vault *secrets.Vault
}

func NewTenantRepo(pool *pgxpool.Pool, vault *secrets.Vault) *TenantRepo {
	return &TenantRepo{pool: pool, vault: vault}
}

const tenantColumns = `id, tenant_id, tier, status, owner_email, owner_name,
	stripe_customer_id, stripe_subscription_id, custom_domain, domain_verified,
	k8s_namespace, db_connection_string, api_url, max_mechanics, max_storage_mb,
	created_at, trial_ends_at, subscription_ends_at, last_billed_at, last_activity_at,
	is_demo, suspension_reason, metadata`

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	dsn, err := r.encryptDSN(t.DBConnectionString)
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO tenants (tenant_id, tier, status, owner_email, owner_name,
			stripe_customer_id, stripe_subscription_id, custom_domain, domain_verified,
			k8s_namespace, db_connection_string, api_url, max_mechanics, max_storage_mb,
			created_at, trial_ends_at, subscription_ends_at, last_billed_at, last_activity_at,
			is_demo, suspension_reason, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		 RETURNING id`,
		t.TenantID, t.Tier, t.Status, t.OwnerEmail, t.OwnerName,
		t.StripeCustomerID, t.StripeSubscriptionID, t.CustomDomain, t.DomainVerified,
		t.K8sNamespace, dsn, t.APIURL, t.MaxMechanics, t.MaxStorageMB,
		t.CreatedAt, t.TrialEndsAt, t.SubscriptionEndsAt, t.LastBilledAt, t.LastActivityAt,
		t.IsDemo, t.SuspensionReason, t.Metadata,
	).Scan(&t.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenantRepo.Create: slug %q: %w", t.TenantID, domain.ErrDuplicateTenantID)
	}
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", err)
	}

	return nil
}

func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1`, slug)

	t, err := r.scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetBySlug: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetBySlug: %w", err)
	}

	return t, nil
}

// UpdateStatus applies a status transition under a row lock so concurrent
// transitions serialize. Invalid edges fail with ErrInvalidTransition and
// never silently no-op.
func (r *TenantRepo) UpdateStatus(ctx context.Context, slug string, to domain.TenantStatus, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tenantRepo.UpdateStatus: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current domain.TenantStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM tenants WHERE tenant_id = $1 FOR UPDATE`, slug,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("tenantRepo.UpdateStatus: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("tenantRepo.UpdateStatus: %w", err)
	}

	if !current.ValidTransition(to) {
		return fmt.Errorf("tenantRepo.UpdateStatus: %s -> %s: %w", current, to, domain.ErrInvalidTransition)
	}

	suspensionReason := ""
	if to == domain.TenantStatusSuspended {
		suspensionReason = reason
	}

	_, err = tx.Exec(ctx,
		`UPDATE tenants SET status = $1, suspension_reason = $2 WHERE tenant_id = $3`,
		to, suspensionReason, slug,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.UpdateStatus: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("tenantRepo.UpdateStatus: commit: %w", err)
	}

	return nil
}

// SetProvisioned stores infra linkage and flips the tenant to active in one
// statement. Only valid from the provisioning state.
func (r *TenantRepo) SetProvisioned(ctx context.Context, slug, namespace, dsn, apiURL string) error {
	encrypted, err := r.vault.Encrypt(dsn)
	if err != nil {
		return fmt.Errorf("tenantRepo.SetProvisioned: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants
		 SET status = $1, k8s_namespace = $2, db_connection_string = $3, api_url = $4
		 WHERE tenant_id = $5 AND status = $6`,
		domain.TenantStatusActive, namespace, encrypted, apiURL,
		slug, domain.TenantStatusProvisioning,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.SetProvisioned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.SetProvisioned: tenant %q not in provisioning state: %w", slug, domain.ErrInvalidTransition)
	}

	return nil
}

func (r *TenantRepo) SetDomainVerified(ctx context.Context, slug, customDomain string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET domain_verified = true, custom_domain = $1 WHERE tenant_id = $2`,
		customDomain, slug,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.SetDomainVerified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.SetDomainVerified: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) List(ctx context.Context, filter domain.TenantFilter, limit, offset int) ([]*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Tier != "" {
		args = append(args, filter.Tier)
		query += fmt.Sprintf(" AND tier = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (tenant_id ILIKE $%d OR owner_email ILIKE $%d OR owner_name ILIKE $%d)", n, n, n)
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.List: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, scanErr := r.scanTenant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("tenantRepo.List: scan: %w", scanErr)
		}
		tenants = append(tenants, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("tenantRepo.List: rows: %w", err)
	}

	return tenants, nil
}

func (r *TenantRepo) StuckInProvisioning(ctx context.Context, cutoff time.Time) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE status = $1 AND created_at < $2`,
		domain.TenantStatusProvisioning, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.StuckInProvisioning: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, scanErr := r.scanTenant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("tenantRepo.StuckInProvisioning: scan: %w", scanErr)
		}
		tenants = append(tenants, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("tenantRepo.StuckInProvisioning: rows: %w", err)
	}

	return tenants, nil
}

func (r *TenantRepo) scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	var encryptedDSN *string

	err := row.Scan(
		&t.ID, &t.TenantID, &t.Tier, &t.Status, &t.OwnerEmail, &t.OwnerName,
		&t.StripeCustomerID, &t.StripeSubscriptionID, &t.CustomDomain, &t.DomainVerified,
		&t.K8sNamespace, &encryptedDSN, &t.APIURL, &t.MaxMechanics, &t.MaxStorageMB,
		&t.CreatedAt, &t.TrialEndsAt, &t.SubscriptionEndsAt, &t.LastBilledAt, &t.LastActivityAt,
		&t.IsDemo, &t.SuspensionReason, &t.Metadata,
	)
	if err != nil {
		return nil, err
	}

	if encryptedDSN != nil {
		dsn, decErr := r.vault.Decrypt(*encryptedDSN)
		if decErr != nil {
			return nil, fmt.Errorf("decrypt connection string: %w", decErr)
		}
		t.DBConnectionString = &dsn
	}

	return &t, nil
}

func (r *TenantRepo) encryptDSN(dsn *string) (*string, error) {
	if dsn == nil {
		return nil, nil
	}
	encrypted, err := r.vault.Encrypt(*dsn)
	if err != nil {
		return nil, fmt.Errorf("encrypt connection string: %w", err)
	}
	return &encrypted, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
