package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/bkuiper/adwatch"
	main "github.com/bkuiper/adwatch/cmd/adwatch"
	"github.com/bkuiper/adwatch/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints the listing as indented JSON", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(_ context.Context, listURL string) (*adwatch.Listing, error) {
				assert.Equal(t, "https://example-market.test/cars", listURL)
				return &adwatch.Listing{
					URL:   "https://example-market.test/v/car/m123456789-golf",
					Title: "VW Golf",
					AdID:  "123456789",
				}, nil
			},
		}

		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}

		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  stderr,
			Service: service,
		}

		cmd := &main.ScanCmd{}
		cmd.URL = "https://example-market.test/cars"

		err := cmd.Run(deps)

		require.NoError(t, err)

		var got adwatch.Listing
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
		assert.Equal(t, "123456789", got.AdID)
		assert.Equal(t, "VW Golf", got.Title)
		assert.Contains(t, stdout.String(), "\n  ")
	})

	t.Run("prints a readable error and fails", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(_ context.Context, listURL string) (*adwatch.Listing, error) {
				return nil, adwatch.Errorf(adwatch.ENOTFOUND, "no organic listing found")
			},
		}

		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}

		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  stderr,
			Service: service,
		}

		cmd := &main.ScanCmd{}
		cmd.URL = "https://example-market.test/cars"

		err := cmd.Run(deps)

		require.Error(t, err)
		assert.Equal(t, adwatch.ENOTFOUND, adwatch.ErrorCode(err))
		assert.Contains(t, stderr.String(), "no organic listing found")
		assert.Empty(t, stdout.String())
	})
}
