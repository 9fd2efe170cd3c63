package verify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type pollRun struct {
	cancel context.CancelFunc
}

// Poller re-checks pending verifications in the background so operators do
// not have to mash the check button while DNS propagates. One polling loop
// runs per (tenant, domain) pair; requesting a fresh challenge cancels the
// loop for the previous one.
type Poller struct {
	engine   *Engine
	interval time.Duration
	attempts int

	mu     sync.Mutex
	active map[string]*pollRun
	wg     sync.WaitGroup
}

func NewPoller(engine *Engine, interval time.Duration, attempts int) *Poller {
	return &Poller{
		engine:   engine,
		interval: interval,
		attempts: attempts,
		active:   make(map[string]*pollRun),
	}
}

// Start begins polling for one pair. Any in-flight loop for the same pair
// is cancelled first.
func (p *Poller) Start(ctx context.Context, tenantSlug, domainName string) {
	key := tenantSlug + "/" + normalizeDomain(domainName)

	loopCtx, cancel := context.WithCancel(ctx)
	run := &pollRun{cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.active[key]; ok {
		prev.cancel()
	}
	p.active[key] = run
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(loopCtx, run, key, tenantSlug, domainName)
}

// Cancel stops the polling loop for one pair, if any.
func (p *Poller) Cancel(tenantSlug, domainName string) {
	key := tenantSlug + "/" + normalizeDomain(domainName)

	p.mu.Lock()
	defer p.mu.Unlock()
	if run, ok := p.active[key]; ok {
		run.cancel()
		delete(p.active, key)
	}
}

// Shutdown cancels all loops and waits for them to exit.
func (p *Poller) Shutdown() {
	p.mu.Lock()
	for key, run := range p.active {
		run.cancel()
		delete(p.active, key)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, run *pollRun, key, tenantSlug, domainName string) {
	defer p.wg.Done()
	defer p.remove(key, run)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err := p.engine.Check(ctx, tenantSlug, domainName)
		if err != nil {
			if IsExpired(err) {
				log.Info().Str("tenant", tenantSlug).Str("domain", domainName).
					Msg("verify: challenge expired, stopping poll")
				return
			}
			log.Warn().Err(err).Str("tenant", tenantSlug).Str("domain", domainName).
				Int("attempt", attempt).Msg("verify: poll check failed")
			continue
		}

		if result.Verified {
			return
		}
	}

	// Attempts exhausted: a normal outcome, not an error. DNS propagation
	// can take up to 48 hours; the challenge stays valid until its expiry
	// and can be re-checked manually.
	log.Info().Str("tenant", tenantSlug).Str("domain", domainName).
		Int("attempts", p.attempts).
		Msg("verify: polling window elapsed without verification; token remains valid until expiry")
}

// remove deletes the loop's own entry, leaving any newer run for the same
// pair untouched.
func (p *Poller) remove(key string, run *pollRun) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[key] == run {
		delete(p.active, key)
	}
}
