package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

type VerificationRepo struct {
	pool *pgxpool.Pool
}

func NewVerificationRepo(pool *pgxpool.Pool) *VerificationRepo {
	return &VerificationRepo{pool: pool}
}

// Create inserts a fresh verification record and removes any prior
// unverified record for the same (tenant, domain) pair, so at most one
// challenge is live per pair and stale tokens cannot produce false results.
func (r *VerificationRepo) Create(ctx context.Context, v *domain.DomainVerification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("verificationRepo.Create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`DELETE FROM domain_verifications
		 WHERE tenant_id = $1 AND domain = $2 AND is_verified = false`,
		v.TenantID, v.Domain,
	)
	if err != nil {
		return fmt.Errorf("verificationRepo.Create: clear stale: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO domain_verifications
			(id, tenant_id, domain, verification_token, method, is_verified, verified_at, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.TenantID, v.Domain, v.VerificationToken, v.Method,
		v.IsVerified, v.VerifiedAt, v.ExpiresAt, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("verificationRepo.Create: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("verificationRepo.Create: commit: %w", err)
	}

	return nil
}

func (r *VerificationRepo) Get(ctx context.Context, tenantSlug, dom string) (*domain.DomainVerification, error) {
	var v domain.DomainVerification

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, domain, verification_token, method, is_verified, verified_at, expires_at, created_at
		 FROM domain_verifications
		 WHERE tenant_id = $1 AND domain = $2
		 ORDER BY created_at DESC LIMIT 1`,
		tenantSlug, dom,
	).Scan(&v.ID, &v.TenantID, &v.Domain, &v.VerificationToken, &v.Method,
		&v.IsVerified, &v.VerifiedAt, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("verificationRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("verificationRepo.Get: %w", err)
	}

	return &v, nil
}

// MarkVerified is idempotent: a record already verified keeps its original
// verified_at timestamp.
func (r *VerificationRepo) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE domain_verifications
		 SET is_verified = true, verified_at = COALESCE(verified_at, $1)
		 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("verificationRepo.MarkVerified: %w", err)
	}

	return nil
}
