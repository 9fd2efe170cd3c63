package provision

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// Watchdog reclaims tenants stranded in provisioning state by a crashed
// orchestrator: it marks them deleted and tears down whatever infrastructure
// the dead run left behind.
type Watchdog struct {
	tenants  domain.TenantRepository
	driver   Driver
	reapAge  time.Duration
	interval time.Duration
}

func NewWatchdog(tenants domain.TenantRepository, driver Driver, reapAge, interval time.Duration) *Watchdog {
	return &Watchdog{
		tenants:  tenants,
		driver:   driver,
		reapAge:  reapAge,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exported so an operator endpoint can trigger it
// on demand.
func (w *Watchdog) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.reapAge)

	stuck, err := w.tenants.StuckInProvisioning(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("watchdog: listing stuck tenants")
		return
	}

	for _, t := range stuck {
		log.Warn().
			Str("tenant", t.TenantID).
			Time("createdAt", t.CreatedAt).
			Msg("watchdog: reaping tenant stuck in provisioning")

		// Tear down first: if cleanup fails the row stays in provisioning
		// and the next sweep retries. Deallocate is idempotent.
		if err := w.driver.Deallocate(ctx, t.TenantID); err != nil {
			log.Error().Err(err).Str("tenant", t.TenantID).Msg("watchdog: tearing down reaped tenant")
			continue
		}

		if err := w.tenants.UpdateStatus(ctx, t.TenantID, domain.TenantStatusDeleted, ""); err != nil {
			log.Error().Err(err).Str("tenant", t.TenantID).Msg("watchdog: marking reaped tenant deleted")
		}
	}
}
