// Package scrape sequences one full scrape operation: load the listing page,
// locate and extract the first organic entry, and de-duplicate the result
// against the last observation.
package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/bkuiper/adwatch"
)

// DefaultBudget is the overall wall-clock budget for one operation.
// Exceeding it fails the call regardless of which step is in progress.
const DefaultBudget = 90 * time.Second

// Ensure Scraper implements adwatch.ListingService at compile time.
var _ adwatch.ListingService = (*Scraper)(nil)

// Scraper is the operation orchestrator. Steps within one run execute
// strictly sequentially; no two DOM-reading operations run concurrently
// against the same page. Callers serialize concurrent scrapes through their
// own gate.
type Scraper struct {
	Loader    adwatch.Loader
	Extractor adwatch.Extractor
	State     adwatch.StateService

	// Budget is the overall wall-clock budget for one operation.
	// Defaults to DefaultBudget.
	Budget time.Duration

	// Logger receives operation events. Optional.
	Logger *slog.Logger
}

// Latest runs one full scrape operation and returns the first organic
// listing, annotated with SameAsLast when the change guard observed no
// progress even after one forced re-scan.
func (s *Scraper) Latest(ctx context.Context, listURL string) (*adwatch.Listing, error) {
	budget := s.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	listing, err := s.scan(ctx, listURL)
	if err != nil {
		return nil, err
	}
	return s.dedupe(ctx, listURL, listing)
}

// scan performs one whole-operation attempt: navigate, settle, classify,
// extract. A browser crash triggers exactly one full retry from navigation
// onward; a second failure is surfaced to the caller.
func (s *Scraper) scan(ctx context.Context, listURL string) (*adwatch.Listing, error) {
	page, err := s.Loader.Load(ctx, listURL)
	if adwatch.ErrorCode(err) == adwatch.EBROWSER {
		s.log().Info("browser crashed, retrying operation once", "err", err)
		page, err = s.Loader.Load(ctx, listURL)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, adwatch.Errorf(adwatch.ETIMEOUT, "operation budget exceeded: %v", err)
		}
		return nil, err
	}

	listing, err := s.Extractor.First(page)
	if err != nil {
		return nil, err
	}
	if err := listing.Validate(); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Scraper) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
