package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bkuiper/adwatch"
	adwatchhttp "github.com/bkuiper/adwatch/http"
	"github.com/bkuiper/adwatch/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listURL = "https://example-market.test/cars?sort=date"

// mustServer starts a test server on a kernel-assigned port and tears it
// down with the test.
func mustServer(t *testing.T, service adwatch.ListingService, configure ...func(*adwatchhttp.Server)) *adwatchhttp.Server {
	t.Helper()

	s := adwatchhttp.NewServer(service)
	s.Addr = "127.0.0.1:0"
	s.DefaultListURL = listURL
	for _, fn := range configure {
		fn(s)
	}
	require.NoError(t, s.Open())
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Latest(t *testing.T) {
	t.Parallel()

	t.Run("returns the extracted listing as JSON", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				assert.Equal(t, listURL, u)
				return &adwatch.Listing{
					URL:   "https://example-market.test/v/car/m123456789-golf",
					Title: "VW Golf",
					AdID:  "123456789",
				}, nil
			},
		}
		s := mustServer(t, service)

		resp := get(t, s.URL()+"/latest")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")

		var got adwatch.Listing
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, "123456789", got.AdID)
		assert.Equal(t, "VW Golf", got.Title)
	})

	t.Run("an unchanged listing yields no content", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				return &adwatch.Listing{AdID: "123456789", SameAsLast: true}, nil
			},
		}
		s := mustServer(t, service)

		resp := get(t, s.URL()+"/latest")

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("the url parameter overrides the configured page", func(t *testing.T) {
		t.Parallel()

		var requested string
		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				requested = u
				return &adwatch.Listing{Title: "x", URL: "https://other.test/v/1"}, nil
			},
		}
		s := mustServer(t, service)

		resp := get(t, s.URL()+"/latest?url=https%3A%2F%2Fother.test%2Fcars")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://other.test/cars", requested)
	})

	t.Run("rejects a non-http override", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		}
		s := mustServer(t, service)

		resp := get(t, s.URL()+"/latest?url=file%3A%2F%2F%2Fetc%2Fpasswd")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("refuses concurrent scrapes", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		started := make(chan struct{})
		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				close(started)
				<-release
				return &adwatch.Listing{Title: "x", URL: "https://example-market.test/v/1"}, nil
			},
		}
		s := mustServer(t, service)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(s.URL() + "/latest")
			if assert.NoError(t, err) {
				resp.Body.Close()
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
		}()

		<-started
		resp := get(t, s.URL()+"/latest")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		close(release)
		wg.Wait()
	})

	t.Run("enforces the minimum interval between scrapes", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				return &adwatch.Listing{Title: "x", URL: "https://example-market.test/v/1"}, nil
			},
		}
		pacer := &mock.Pacer{}
		calls := 0
		pacer.AllowFn = func() (time.Duration, bool) {
			calls++
			if calls > 1 {
				return 42 * time.Second, false
			}
			return 0, true
		}
		s := mustServer(t, service, func(s *adwatchhttp.Server) { s.Pacer = pacer })

		resp := get(t, s.URL()+"/latest")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = get(t, s.URL()+"/latest")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "43", resp.Header.Get("Retry-After"))
	})

	t.Run("maps application errors to status codes", func(t *testing.T) {
		t.Parallel()

		for code, status := range map[string]int{
			adwatch.ENOTFOUND: http.StatusNotFound,
			adwatch.ETIMEOUT:  http.StatusGatewayTimeout,
			adwatch.EBROWSER:  http.StatusBadGateway,
			adwatch.EINTERNAL: http.StatusInternalServerError,
		} {
			service := &mock.ListingService{
				LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
					return nil, adwatch.Errorf(code, "boom")
				},
			}
			s := mustServer(t, service)

			resp := get(t, s.URL()+"/latest")

			assert.Equal(t, status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "boom", body["error"])
		}
	})

	t.Run("hides unexpected error details", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{
			LatestFn: func(ctx context.Context, u string) (*adwatch.Listing, error) {
				return nil, io.ErrUnexpectedEOF
			},
		}
		s := mustServer(t, service)

		resp := get(t, s.URL()+"/latest")

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Internal error.", body["error"])
	})

	t.Run("requires a listing URL", func(t *testing.T) {
		t.Parallel()

		service := &mock.ListingService{}
		s := mustServer(t, service, func(s *adwatchhttp.Server) { s.DefaultListURL = "" })

		resp := get(t, s.URL()+"/latest")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	s := mustServer(t, &mock.ListingService{})

	resp := get(t, s.URL()+"/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}
