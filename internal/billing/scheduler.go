package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler runs full reconciliation sweeps on a fixed interval.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
}

func NewScheduler(reconciler *Reconciler, interval time.Duration) *Scheduler {
	return &Scheduler{reconciler: reconciler, interval: interval}
}

// Run sweeps until ctx is cancelled. The first sweep happens one interval
// in; a freshly booted control plane should not immediately suspend
// tenants before webhooks have caught up.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := time.Now()
			s.reconciler.ReconcileAll(ctx)
			log.Info().Dur("took", time.Since(started)).Msg("billing: reconciliation sweep complete")
		}
	}
}
