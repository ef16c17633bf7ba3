package mock

import (
	"context"

	"github.com/bkuiper/adwatch"
)

var _ adwatch.ListingService = (*ListingService)(nil)

// ListingService is a mock implementation of adwatch.ListingService.
type ListingService struct {
	LatestFn func(ctx context.Context, listURL string) (*adwatch.Listing, error)
}

func (s *ListingService) Latest(ctx context.Context, listURL string) (*adwatch.Listing, error) {
	return s.LatestFn(ctx, listURL)
}
