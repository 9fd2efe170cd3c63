package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 10 * time.Minute
	limiterIdleCutoff = 30 * time.Minute
)

// limiterPool keeps one token bucket per key and evicts buckets that have
// been idle past limiterIdleCutoff so the map cannot grow without bound.
type limiterPool[K comparable] struct {
	mu      sync.Mutex
	buckets map[K]*bucket
	rps     rate.Limit
	burst   int
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// newLimiterPool starts the eviction goroutine; ctx bounds its lifetime.
func newLimiterPool[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterPool[K] {
	p := &limiterPool[K]{
		buckets: make(map[K]*bucket),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
	}
	go p.evictLoop(ctx)
	return p
}

func (p *limiterPool[K]) allow(key K) bool {
	p.mu.Lock()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.buckets[key] = b
	}
	b.lastAccess = time.Now()
	lim := b.limiter
	p.mu.Unlock()

	return lim.Allow()
}

func (p *limiterPool[K]) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			cutoff := time.Now().Add(-limiterIdleCutoff)
			for key, b := range p.buckets {
				if b.lastAccess.Before(cutoff) {
					delete(p.buckets, key)
				}
			}
			p.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func tooManyRequests(w http.ResponseWriter) {
	http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
}

// RateLimitByIP throttles unauthenticated endpoints per client IP. chi's
// RealIP middleware rewrites RemoteAddr before this runs.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	pool := newLimiterPool[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(r.RemoteAddr) {
				tooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles authenticated traffic per operator. Requests without
// an operator identity pass through; Auth rejects those before any handler
// runs.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	pool := newLimiterPool[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operatorID, ok := OperatorIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !pool.allow(operatorID) {
				tooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
