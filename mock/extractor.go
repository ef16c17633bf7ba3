package mock

import "github.com/bkuiper/adwatch"

var _ adwatch.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of adwatch.Extractor.
type Extractor struct {
	FirstFn func(page *adwatch.ListingPage) (*adwatch.Listing, error)
}

func (e *Extractor) First(page *adwatch.ListingPage) (*adwatch.Listing, error) {
	return e.FirstFn(page)
}
