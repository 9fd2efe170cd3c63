package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// BillingRepo stores billing events and usage snapshots. Both are
// append-only time series; reconciliation only ever reads the latest facts.
type BillingRepo struct {
	pool *pgxpool.Pool
}

func NewBillingRepo(pool *pgxpool.Pool) *BillingRepo {
	return &BillingRepo{pool: pool}
}

func (r *BillingRepo) RecordEvent(ctx context.Context, e *domain.BillingEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("billingRepo.RecordEvent: marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO billing_events (id, tenant_id, event_type, amount_cents, currency, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TenantID, e.EventType, e.AmountCents, e.Currency, metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("billingRepo.RecordEvent: %w", err)
	}

	return nil
}

func (r *BillingRepo) LastEvent(ctx context.Context, tenantSlug, eventType string) (*domain.BillingEvent, error) {
	var e domain.BillingEvent
	var metadata []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, event_type, amount_cents, currency, metadata, created_at
		 FROM billing_events
		 WHERE tenant_id = $1 AND event_type = $2
		 ORDER BY created_at DESC LIMIT 1`,
		tenantSlug, eventType,
	).Scan(&e.ID, &e.TenantID, &e.EventType, &e.AmountCents, &e.Currency, &metadata, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("billingRepo.LastEvent: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("billingRepo.LastEvent: %w", err)
	}

	if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("billingRepo.LastEvent: unmarshal metadata: %w", err)
	}

	return &e, nil
}

func (r *BillingRepo) RecordMetrics(ctx context.Context, m *domain.TenantMetrics) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenant_metrics (tenant_id, mechanic_count, storage_used_mb, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		m.TenantID, m.MechanicCount, m.StorageUsedMB, m.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("billingRepo.RecordMetrics: %w", err)
	}

	return nil
}

func (r *BillingRepo) LatestMetrics(ctx context.Context, tenantSlug string) (*domain.TenantMetrics, error) {
	var m domain.TenantMetrics

	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, mechanic_count, storage_used_mb, recorded_at
		 FROM tenant_metrics
		 WHERE tenant_id = $1
		 ORDER BY recorded_at DESC LIMIT 1`,
		tenantSlug,
	).Scan(&m.TenantID, &m.MechanicCount, &m.StorageUsedMB, &m.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("billingRepo.LatestMetrics: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("billingRepo.LatestMetrics: %w", err)
	}

	return &m, nil
}
