package v1

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mechanicbuddy/control-plane/internal/billing"
	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/server/middleware"
)

type BillingWebhookInput struct {
	Secret string `header:"X-Webhook-Secret" doc:"Shared webhook secret"` //nolint:gosec // G117: webhook auth header DTO
	Body   struct {
		TenantID    string         `json:"tenantId" minLength:"3" maxLength:"30" doc:"Tenant slug"`
		EventType   string         `json:"eventType" enum:"payment_succeeded,payment_failed" doc:"Billing event type"`
		AmountCents int64          `json:"amountCents,omitempty" minimum:"0" doc:"Amount in cents"`
		Currency    string         `json:"currency,omitempty" maxLength:"3" doc:"ISO 4217 currency code"`
		Metadata    map[string]any `json:"metadata,omitempty" doc:"Opaque processor metadata"`
	}
}

type ReconcileOutput struct {
	Body struct {
		TenantID string         `json:"tenantId"`
		Action   billing.Action `json:"action"`
	}
}

type RecordMetricsInput struct {
	Body struct {
		TenantID      string    `json:"tenantId" minLength:"3" maxLength:"30" doc:"Tenant slug"`
		MechanicCount int       `json:"mechanicCount" minimum:"0" doc:"Active mechanic accounts"`
		StorageUsedMB int       `json:"storageUsedMb" minimum:"0" doc:"Storage used in MB"`
		RecordedAt    time.Time `json:"recordedAt,omitempty" doc:"Snapshot time; defaults to now"`
	}
}

type RecordMetricsOutput struct {
	Body struct {
		Recorded bool `json:"recorded"`
	}
}

type ReconcileTenantInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
}

// RegisterBillingWebhookRoutes wires the payment processor callback. It
// lives on the unauthenticated API group and is gated by a shared secret
// header instead of an operator token.
func RegisterBillingWebhookRoutes(api huma.API, billingSvc BillingService, webhookSecret string) {
	huma.Register(api, huma.Operation{
		OperationID: "billing-webhook",
		Method:      http.MethodPost,
		Path:        "/billing/webhook",
		Summary:     "Ingest a billing event from the payment processor",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *BillingWebhookInput) (*ReconcileOutput, error) {
		if webhookSecret == "" {
			return nil, huma.Error503ServiceUnavailable("billing webhook is not configured")
		}
		if subtle.ConstantTimeCompare([]byte(input.Secret), []byte(webhookSecret)) != 1 {
			return nil, huma.Error401Unauthorized("invalid webhook secret")
		}

		event := &domain.BillingEvent{
			TenantID:    input.Body.TenantID,
			EventType:   input.Body.EventType,
			AmountCents: input.Body.AmountCents,
			Currency:    input.Body.Currency,
			Metadata:    input.Body.Metadata,
		}

		action, err := billingSvc.RecordEvent(ctx, event)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("tenant not found")
			case errors.Is(err, domain.ErrValidation):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to record billing event", err)
		}

		out := &ReconcileOutput{}
		out.Body.TenantID = input.Body.TenantID
		out.Body.Action = action
		return out, nil
	})
}

// RegisterBillingRoutes wires the authenticated billing endpoints: usage
// metric ingestion and on-demand reconciliation.
func RegisterBillingRoutes(api huma.API, billingSvc BillingService) {
	huma.Register(api, huma.Operation{
		OperationID: "record-metrics",
		Method:      http.MethodPost,
		Path:        "/billing/metrics",
		Summary:     "Record a tenant usage snapshot",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *RecordMetricsInput) (*RecordMetricsOutput, error) {
		m := &domain.TenantMetrics{
			TenantID:      input.Body.TenantID,
			MechanicCount: input.Body.MechanicCount,
			StorageUsedMB: input.Body.StorageUsedMB,
			RecordedAt:    input.Body.RecordedAt,
		}

		if err := billingSvc.RecordMetrics(ctx, m); err != nil {
			return nil, huma.Error500InternalServerError("failed to record metrics", err)
		}

		out := &RecordMetricsOutput{}
		out.Body.Recorded = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reconcile-tenant",
		Method:      http.MethodPost,
		Path:        "/tenants/{slug}/reconcile",
		Summary:     "Run billing reconciliation for one tenant now",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *ReconcileTenantInput) (*ReconcileOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		action, err := billingSvc.ReconcileTenant(ctx, input.Slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tenant not found")
			}
			return nil, huma.Error500InternalServerError("reconciliation failed", err)
		}

		out := &ReconcileOutput{}
		out.Body.TenantID = input.Slug
		out.Body.Action = action
		return out, nil
	})
}
