// Package mock provides mock implementations of adwatch interfaces for
// testing.
package mock

import (
	"context"

	"github.com/bkuiper/adwatch"
)

var _ adwatch.Loader = (*Loader)(nil)

// Loader is a mock implementation of adwatch.Loader.
type Loader struct {
	LoadFn  func(ctx context.Context, listURL string) (*adwatch.ListingPage, error)
	CloseFn func() error
}

func (l *Loader) Load(ctx context.Context, listURL string) (*adwatch.ListingPage, error) {
	return l.LoadFn(ctx, listURL)
}

func (l *Loader) Close() error {
	if l.CloseFn == nil {
		return nil
	}
	return l.CloseFn()
}
