package scrape

import (
	"context"
	"math/rand"
	"time"

	"github.com/bkuiper/adwatch"
	"golang.org/x/time/rate"
)

// Ensure IntervalPacer implements adwatch.Pacer at compile time.
var _ adwatch.Pacer = (*IntervalPacer)(nil)

// IntervalPacer enforces a minimum interval between operations and adds a
// randomized startup delay. Both exist to avoid hammering the remote site;
// a zero jitter range makes the pacer deterministic for tests.
type IntervalPacer struct {
	limiter   *rate.Limiter
	jitterMin time.Duration
	jitterMax time.Duration
	rng       *rand.Rand
}

// NewIntervalPacer creates a pacer with the given minimum interval between
// operations and jitter range. A non-positive interval disables the
// interval check.
func NewIntervalPacer(minInterval, jitterMin, jitterMax time.Duration) *IntervalPacer {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &IntervalPacer{
		limiter:   rate.NewLimiter(limit, 1),
		jitterMin: jitterMin,
		jitterMax: jitterMax,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Allow reports whether a new operation may begin now. When the minimum
// interval has not elapsed, it returns the remaining wait without consuming
// the slot.
func (p *IntervalPacer) Allow() (time.Duration, bool) {
	r := p.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return delay, false
	}
	return 0, true
}

// Jitter sleeps a random delay within the configured range, or returns
// immediately when the range is empty.
func (p *IntervalPacer) Jitter(ctx context.Context) error {
	if p.jitterMax <= 0 {
		return nil
	}
	d := p.jitterMin
	if span := p.jitterMax - p.jitterMin; span > 0 {
		d += time.Duration(p.rng.Int63n(int64(span) + 1))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
