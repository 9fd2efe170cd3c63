package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// AuditRepo is append-only. There is no update or delete path on purpose:
// audit rows are a compliance record.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs
			(id, admin_id, admin_email, admin_role, ip_address, user_agent,
			 http_method, endpoint, resource_type, resource_id, tenant_id,
			 timestamp, duration_ms, status_code, was_successful)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID, entry.AdminID, entry.AdminEmail, entry.AdminRole,
		entry.IPAddress, entry.UserAgent, entry.HTTPMethod, entry.Endpoint,
		entry.ResourceType, entry.ResourceID, entry.TenantID,
		entry.Timestamp, entry.DurationMs, entry.StatusCode, entry.WasSuccessful,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: %w", err)
	}

	return nil
}

func (r *AuditRepo) Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLog, error) {
	query := `SELECT id, admin_id, admin_email, admin_role, ip_address, user_agent,
		http_method, endpoint, resource_type, resource_id, tenant_id,
		timestamp, duration_ms, status_code, was_successful
		FROM audit_logs WHERE 1=1`
	args := []any{}

	if filter.SearchText != "" {
		args = append(args, "%"+filter.SearchText+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (admin_email ILIKE $%d OR endpoint ILIKE $%d OR resource_id ILIKE $%d)", n, n, n)
	}
	if filter.ActionType != "" {
		args = append(args, filter.ActionType)
		query += fmt.Sprintf(" AND http_method = $%d", len(args))
	}
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.Query: %w", err)
	}
	defer rows.Close()

	return scanAuditLogs(rows, "auditRepo.Query")
}

// Stats computes the derived aggregate over [now - windowDays, now].
// Auth-category events are requests against the operator auth endpoints.
func (r *AuditRepo) Stats(ctx context.Context, windowDays int) (*domain.AuditLogStats, error) {
	stats := &domain.AuditLogStats{WindowDays: windowDays}

	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(DISTINCT admin_id),
			COUNT(*) FILTER (WHERE tenant_id <> ''),
			COUNT(*) FILTER (WHERE endpoint LIKE '/api/v1/auth/%'),
			COUNT(*) FILTER (WHERE was_successful = false)
		 FROM audit_logs
		 WHERE timestamp >= now() - make_interval(days => $1)`,
		windowDays,
	).Scan(&stats.TotalRequests, &stats.DistinctAdmins, &stats.TenantScopedOps,
		&stats.AuthEvents, &stats.FailedRequests)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.Stats: %w", err)
	}

	return stats, nil
}

func scanAuditLogs(rows pgx.Rows, caller string) ([]*domain.AuditLog, error) {
	var entries []*domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog

		if err := rows.Scan(
			&e.ID, &e.AdminID, &e.AdminEmail, &e.AdminRole, &e.IPAddress, &e.UserAgent,
			&e.HTTPMethod, &e.Endpoint, &e.ResourceType, &e.ResourceID, &e.TenantID,
			&e.Timestamp, &e.DurationMs, &e.StatusCode, &e.WasSuccessful,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}
