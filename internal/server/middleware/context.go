package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextKeyOperatorID    contextKey = "operator_id"
	ContextKeyOperatorEmail contextKey = "operator_email"
	ContextKeyOperatorRole  contextKey = "operator_role"
)

func OperatorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyOperatorID).(uuid.UUID)
	return v, ok
}

func OperatorEmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyOperatorEmail).(string)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyOperatorRole).(string)
	return v, ok
}
