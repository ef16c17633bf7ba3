// Package slog provides logging decorators for adwatch services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/bkuiper/adwatch"
)

// Ensure LoggingLoader implements adwatch.Loader.
var _ adwatch.Loader = (*LoggingLoader)(nil)

// LoggingLoader wraps a Loader with timing and outcome logging.
type LoggingLoader struct {
	next   adwatch.Loader
	logger *slog.Logger
}

// NewLoggingLoader creates a new LoggingLoader.
func NewLoggingLoader(next adwatch.Loader, logger *slog.Logger) *LoggingLoader {
	return &LoggingLoader{next: next, logger: logger}
}

// Load delegates to the wrapped loader and logs the page size and duration.
func (l *LoggingLoader) Load(ctx context.Context, listURL string) (*adwatch.ListingPage, error) {
	begin := time.Now()
	page, err := l.next.Load(ctx, listURL)
	if err != nil {
		l.logger.Error("load",
			"url", listURL,
			"duration", time.Since(begin),
			"err", err,
		)
		return nil, err
	}
	l.logger.Info("load",
		"url", listURL,
		"bytes", len(page.HTML),
		"duration", time.Since(begin),
	)
	return page, nil
}

// Close delegates to the wrapped loader.
func (l *LoggingLoader) Close() error {
	return l.next.Close()
}
