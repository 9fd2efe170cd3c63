package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	redisstore "github.com/mechanicbuddy/control-plane/internal/store/redis"
)

// Action is the outcome of reconciling one tenant.
type Action string

const (
	ActionNone      Action = "none"
	ActionWarn      Action = "warn"
	ActionSuspend   Action = "suspend"
	ActionReinstate Action = "reinstate"
)

// lockTTL bounds how long a crashed reconciler can block a tenant.
const lockTTL = 2 * time.Minute

// Locker is the per-tenant advisory lock, backed by Redis SET NX.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// OpsNotifier reports reconciliation outcomes to the ops channel.
type OpsNotifier interface {
	TenantSuspended(ctx context.Context, slug, reason string)
	TenantReinstated(ctx context.Context, slug string)
	QuotaWarning(ctx context.Context, slug, detail string)
}

// Reconciler drives tenant state from billing facts: overdue payment
// failures suspend, payments after a billing suspension reinstate, quota
// breaches warn. Admin-initiated suspensions are never touched.
type Reconciler struct {
	tenants  domain.TenantRepository
	billing  domain.BillingRepository
	locker   Locker
	notifier OpsNotifier
	grace    time.Duration
}

// NewReconciler wires the reconciliation loop. locker and notifier may be
// nil (single-node deployments, silent ops).
func NewReconciler(tenants domain.TenantRepository, billing domain.BillingRepository, locker Locker, notifier OpsNotifier, grace time.Duration) *Reconciler {
	return &Reconciler{
		tenants:  tenants,
		billing:  billing,
		locker:   locker,
		notifier: notifier,
		grace:    grace,
	}
}

// RecordEvent appends a billing fact (webhook ingest) and immediately
// reconciles the affected tenant.
func (r *Reconciler) RecordEvent(ctx context.Context, e *domain.BillingEvent) (Action, error) {
	if e.EventType != domain.BillingEventPaymentSucceeded && e.EventType != domain.BillingEventPaymentFailed {
		return ActionNone, fmt.Errorf("billing.RecordEvent: unknown event type %q: %w", e.EventType, domain.ErrValidation)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if err := r.billing.RecordEvent(ctx, e); err != nil {
		return ActionNone, fmt.Errorf("billing.RecordEvent: %w", err)
	}

	return r.ReconcileTenant(ctx, e.TenantID)
}

// RecordMetrics stores a usage snapshot (reported by tenant deployments).
func (r *Reconciler) RecordMetrics(ctx context.Context, m *domain.TenantMetrics) error {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now()
	}

	if err := r.billing.RecordMetrics(ctx, m); err != nil {
		return fmt.Errorf("billing.RecordMetrics: %w", err)
	}

	return nil
}

// ReconcileTenant reconciles one tenant under its advisory lock. A held
// lock means another node is already on it; that is ActionNone, not an
// error.
func (r *Reconciler) ReconcileTenant(ctx context.Context, slug string) (Action, error) {
	if r.locker != nil {
		key := redisstore.ReconcileLockKey(slug)
		ok, err := r.locker.AcquireLock(ctx, key, lockTTL)
		if err != nil {
			return ActionNone, fmt.Errorf("billing.ReconcileTenant: lock: %w", err)
		}
		if !ok {
			return ActionNone, nil
		}
		defer func() {
			if err := r.locker.ReleaseLock(ctx, key); err != nil {
				log.Warn().Err(err).Str("tenant", slug).Msg("billing: releasing reconcile lock")
			}
		}()
	}

	tenant, err := r.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return ActionNone, fmt.Errorf("billing.ReconcileTenant: %w", err)
	}

	return r.reconcile(ctx, tenant)
}

// ReconcileAll sweeps every reconcilable tenant. Per-tenant failures are
// logged and skipped so one broken tenant cannot stall the sweep.
func (r *Reconciler) ReconcileAll(ctx context.Context) {
	const pageSize = 100

	for _, status := range []domain.TenantStatus{
		domain.TenantStatusActive,
		domain.TenantStatusTrial,
		domain.TenantStatusSuspended,
	} {
		for offset := 0; ; offset += pageSize {
			page, err := r.tenants.List(ctx, domain.TenantFilter{Status: status}, pageSize, offset)
			if err != nil {
				log.Error().Err(err).Str("status", string(status)).Msg("billing: listing tenants for reconciliation")
				break
			}

			for _, t := range page {
				if _, err := r.ReconcileTenant(ctx, t.TenantID); err != nil {
					log.Error().Err(err).Str("tenant", t.TenantID).Msg("billing: reconciling tenant")
				}
			}

			if len(page) < pageSize {
				break
			}
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, t *domain.Tenant) (Action, error) {
	switch t.Status {
	case domain.TenantStatusActive, domain.TenantStatusTrial:
		return r.reconcileRunning(ctx, t)
	case domain.TenantStatusSuspended:
		return r.reconcileSuspended(ctx, t)
	default:
		// provisioning and deleted tenants are not billable.
		return ActionNone, nil
	}
}

// reconcileRunning suspends on overdue payment failure, otherwise checks
// quotas.
func (r *Reconciler) reconcileRunning(ctx context.Context, t *domain.Tenant) (Action, error) {
	overdue, err := r.overdueFailure(ctx, t.TenantID)
	if err != nil {
		return ActionNone, err
	}

	if overdue {
		if err := r.tenants.UpdateStatus(ctx, t.TenantID, domain.TenantStatusSuspended, domain.SuspensionReasonBilling); err != nil {
			return ActionNone, fmt.Errorf("billing: suspending %s: %w", t.TenantID, err)
		}

		log.Warn().Str("tenant", t.TenantID).Msg("billing: tenant suspended for overdue payment")
		if r.notifier != nil {
			r.notifier.TenantSuspended(ctx, t.TenantID, domain.SuspensionReasonBilling)
		}
		return ActionSuspend, nil
	}

	return r.checkQuota(ctx, t)
}

// reconcileSuspended reinstates a billing-suspended tenant once a payment
// lands after the failure that suspended it. Admin suspensions require a
// human.
func (r *Reconciler) reconcileSuspended(ctx context.Context, t *domain.Tenant) (Action, error) {
	if t.SuspensionReason != domain.SuspensionReasonBilling {
		return ActionNone, nil
	}

	success, err := r.billing.LastEvent(ctx, t.TenantID, domain.BillingEventPaymentSucceeded)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ActionNone, nil
		}
		return ActionNone, fmt.Errorf("billing: last success for %s: %w", t.TenantID, err)
	}

	failure, err := r.billing.LastEvent(ctx, t.TenantID, domain.BillingEventPaymentFailed)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ActionNone, fmt.Errorf("billing: last failure for %s: %w", t.TenantID, err)
	}

	if failure != nil && !success.CreatedAt.After(failure.CreatedAt) {
		return ActionNone, nil
	}

	if err := r.tenants.UpdateStatus(ctx, t.TenantID, domain.TenantStatusActive, ""); err != nil {
		return ActionNone, fmt.Errorf("billing: reinstating %s: %w", t.TenantID, err)
	}

	log.Info().Str("tenant", t.TenantID).Msg("billing: tenant reinstated after payment")
	if r.notifier != nil {
		r.notifier.TenantReinstated(ctx, t.TenantID)
	}
	return ActionReinstate, nil
}

// overdueFailure reports whether the tenant's newest payment failure is
// older than the grace period with no success after it.
func (r *Reconciler) overdueFailure(ctx context.Context, slug string) (bool, error) {
	failure, err := r.billing.LastEvent(ctx, slug, domain.BillingEventPaymentFailed)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("billing: last failure for %s: %w", slug, err)
	}

	success, err := r.billing.LastEvent(ctx, slug, domain.BillingEventPaymentSucceeded)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("billing: last success for %s: %w", slug, err)
	}

	if success != nil && success.CreatedAt.After(failure.CreatedAt) {
		return false, nil
	}

	return time.Since(failure.CreatedAt) > r.grace, nil
}

func (r *Reconciler) checkQuota(ctx context.Context, t *domain.Tenant) (Action, error) {
	metrics, err := r.billing.LatestMetrics(ctx, t.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ActionNone, nil
		}
		return ActionNone, fmt.Errorf("billing: metrics for %s: %w", t.TenantID, err)
	}

	var detail string
	switch {
	case metrics.MechanicCount > t.MaxMechanics:
		detail = fmt.Sprintf("%d/%d mechanics", metrics.MechanicCount, t.MaxMechanics)
	case metrics.StorageUsedMB > t.MaxStorageMB:
		detail = fmt.Sprintf("%d/%d MB storage", metrics.StorageUsedMB, t.MaxStorageMB)
	default:
		return ActionNone, nil
	}

	// Over-quota is a warning, never an automatic suspension.
	log.Warn().Str("tenant", t.TenantID).Str("detail", detail).Msg("billing: tenant over quota")
	if r.notifier != nil {
		r.notifier.QuotaWarning(ctx, t.TenantID, detail)
	}
	return ActionWarn, nil
}
