package mock

import (
	"context"
	"time"

	"github.com/bkuiper/adwatch"
)

var _ adwatch.Pacer = (*Pacer)(nil)

// Pacer is a mock implementation of adwatch.Pacer. The zero value allows
// everything immediately.
type Pacer struct {
	AllowFn  func() (time.Duration, bool)
	JitterFn func(ctx context.Context) error
}

func (p *Pacer) Allow() (time.Duration, bool) {
	if p.AllowFn == nil {
		return 0, true
	}
	return p.AllowFn()
}

func (p *Pacer) Jitter(ctx context.Context) error {
	if p.JitterFn == nil {
		return nil
	}
	return p.JitterFn(ctx)
}
