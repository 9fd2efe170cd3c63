package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operator roles. Admins may mutate tenants; operators are read-only.
const (
	OperatorRoleAdmin    = "admin"
	OperatorRoleReadOnly = "operator"
)

// Operator is a management-portal user.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Provider     string    `json:"provider,omitempty"` // "", "google", "github"
	ProviderID   string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type OperatorRepository interface {
	Create(ctx context.Context, o *Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*Operator, error)
	GetByEmail(ctx context.Context, email string) (*Operator, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*Operator, error)
}
