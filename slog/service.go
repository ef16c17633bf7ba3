package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/bkuiper/adwatch"
)

// Ensure LoggingService implements adwatch.ListingService.
var _ adwatch.ListingService = (*LoggingService)(nil)

// LoggingService wraps a ListingService with per-operation logging.
type LoggingService struct {
	next   adwatch.ListingService
	logger *slog.Logger
}

// NewLoggingService creates a new LoggingService.
func NewLoggingService(next adwatch.ListingService, logger *slog.Logger) *LoggingService {
	return &LoggingService{next: next, logger: logger}
}

// Latest delegates to the wrapped service and logs the outcome.
func (s *LoggingService) Latest(ctx context.Context, listURL string) (*adwatch.Listing, error) {
	begin := time.Now()
	listing, err := s.next.Latest(ctx, listURL)
	if err != nil {
		s.logger.Error("latest",
			"listUrl", listURL,
			"duration", time.Since(begin),
			"code", adwatch.ErrorCode(err),
			"err", err,
		)
		return nil, err
	}
	s.logger.Info("latest",
		"listUrl", listURL,
		"adId", listing.AdID,
		"sameAsLast", listing.SameAsLast,
		"duration", time.Since(begin),
	)
	return listing, nil
}
