package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

type OperatorRepo struct {
	pool *pgxpool.Pool
}

func NewOperatorRepo(pool *pgxpool.Pool) *OperatorRepo {
	return &OperatorRepo{pool: pool}
}

func (r *OperatorRepo) Create(ctx context.Context, o *domain.Operator) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO operators (id, email, password_hash, name, role, provider, provider_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Email, o.PasswordHash, o.Name, o.Role, o.Provider, o.ProviderID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("operatorRepo.Create: %w", err)
	}

	return nil
}

func (r *OperatorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *OperatorRepo) GetByProvider(ctx context.Context, provider, providerID string) (*domain.Operator, error) {
	return r.get(ctx, `WHERE provider = $1 AND provider_id = $2`, provider, providerID)
}

func (r *OperatorRepo) get(ctx context.Context, where string, args ...any) (*domain.Operator, error) {
	var o domain.Operator

	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, role, provider, provider_id, created_at, updated_at
		 FROM operators `+where,
		args...,
	).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Name, &o.Role, &o.Provider, &o.ProviderID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("operatorRepo.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("operatorRepo.get: %w", err)
	}

	return &o, nil
}
