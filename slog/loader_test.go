package slog_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bkuiper/adwatch"
	"github.com/bkuiper/adwatch/mock"
	adwatchslog "github.com/bkuiper/adwatch/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("logs page size and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Loader{
			LoadFn: func(ctx context.Context, listURL string) (*adwatch.ListingPage, error) {
				return &adwatch.ListingPage{
					ListURL:  listURL,
					HTML:     "<ul><li>card</li></ul>",
					LoadedAt: time.Now(),
				}, nil
			},
		}

		loader := adwatchslog.NewLoggingLoader(inner, logger)
		page, err := loader.Load(context.Background(), "https://example-market.test/cars")

		require.NoError(t, err)
		assert.Equal(t, "<ul><li>card</li></ul>", page.HTML)
		output := buf.String()
		assert.Contains(t, output, "load")
		assert.Contains(t, output, "url=https://example-market.test/cars")
		assert.Contains(t, output, "bytes=22")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs error on failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Loader{
			LoadFn: func(ctx context.Context, listURL string) (*adwatch.ListingPage, error) {
				return nil, adwatch.Errorf(adwatch.ETIMEOUT, "page never became ready")
			},
		}

		loader := adwatchslog.NewLoggingLoader(inner, logger)
		_, err := loader.Load(context.Background(), "https://example-market.test/cars")

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "load")
		assert.Contains(t, output, "page never became ready")
	})
}

func TestLoggingLoader_Close(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	closeCalled := false
	inner := &mock.Loader{
		CloseFn: func() error {
			closeCalled = true
			return nil
		},
	}

	loader := adwatchslog.NewLoggingLoader(inner, logger)
	err := loader.Close()

	require.NoError(t, err)
	assert.True(t, closeCalled)
}

func TestLoggingService_Latest(t *testing.T) {
	t.Parallel()

	t.Run("logs the ad identity and change status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.ListingService{
			LatestFn: func(ctx context.Context, listURL string) (*adwatch.Listing, error) {
				return &adwatch.Listing{AdID: "123456789", Title: "VW Golf", SameAsLast: true}, nil
			},
		}

		service := adwatchslog.NewLoggingService(inner, logger)
		listing, err := service.Latest(context.Background(), "https://example-market.test/cars")

		require.NoError(t, err)
		assert.Equal(t, "123456789", listing.AdID)
		output := buf.String()
		assert.Contains(t, output, "latest")
		assert.Contains(t, output, "adId=123456789")
		assert.Contains(t, output, "sameAsLast=true")
	})

	t.Run("logs the error code on failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.ListingService{
			LatestFn: func(ctx context.Context, listURL string) (*adwatch.Listing, error) {
				return nil, adwatch.Errorf(adwatch.ENOTFOUND, "no organic listing found")
			},
		}

		service := adwatchslog.NewLoggingService(inner, logger)
		_, err := service.Latest(context.Background(), "https://example-market.test/cars")

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "code=not_found")
	})
}
