package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/secrets"
)

type Store struct {
	pool          *pgxpool.Pool
	tenants       *TenantRepo
	verifications *VerificationRepo
	audit         *AuditRepo
	billing       *BillingRepo
	operators     *OperatorRepo
}

func New(ctx context.Context, dsn string, maxConns int32, vault *secrets.Vault) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:          pool,
		tenants:       NewTenantRepo(pool, vault),
		verifications: NewVerificationRepo(pool),
		audit:         NewAuditRepo(pool),
		billing:       NewBillingRepo(pool),
		operators:     NewOperatorRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tenants() domain.TenantRepository             { return s.tenants }
func (s *Store) Verifications() domain.VerificationRepository { return s.verifications }
func (s *Store) Audit() domain.AuditRepository                { return s.audit }
func (s *Store) Billing() domain.BillingRepository            { return s.billing }
func (s *Store) Operators() domain.OperatorRepository         { return s.operators }
