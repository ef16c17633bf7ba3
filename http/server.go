// Package http exposes the listing service over HTTP.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bkuiper/adwatch"
	"golang.org/x/sync/semaphore"
)

// DefaultRequestTimeout bounds a single /latest request. It sits slightly
// above the scrape budget so the scraper's own timeout fires first and the
// response carries its error.
const DefaultRequestTimeout = 95 * time.Second

// Server serves the latest-listing endpoint. One scrape runs at a time;
// concurrent callers are refused rather than queued so a slow page cannot
// pile up browser work.
type Server struct {
	ln     net.Listener
	server *http.Server
	gate   *semaphore.Weighted

	Addr           string
	DefaultListURL string
	RequestTimeout time.Duration

	Service adwatch.ListingService
	Pacer   adwatch.Pacer
	Logger  *slog.Logger
}

// NewServer creates a Server around the given listing service.
func NewServer(service adwatch.ListingService) *Server {
	return &Server{
		gate:           semaphore.NewWeighted(1),
		RequestTimeout: DefaultRequestTimeout,
		Service:        service,
	}
}

// Open begins listening on the configured address.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("GET /latest", s.handleLatest)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log().Error("http server stopped", "err", err)
		}
	}()

	return nil
}

// Close gracefully shuts the server down.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// URL returns the base URL the server is listening on. Useful in tests when
// the address was chosen by the kernel.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	// Results must never be served stale by intermediaries; the whole point
	// is observing the page as it is right now.
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	listURL := s.DefaultListURL
	if override := r.URL.Query().Get("url"); override != "" {
		if err := validateListURL(override); err != nil {
			writeError(w, err)
			return
		}
		listURL = override
	}
	if listURL == "" {
		writeError(w, adwatch.Errorf(adwatch.EINVALID, "no listing URL configured; pass ?url="))
		return
	}

	if !s.gate.TryAcquire(1) {
		writeError(w, adwatch.Errorf(adwatch.EBUSY, "a scrape is already in progress"))
		return
	}
	defer s.gate.Release(1)

	if s.Pacer != nil {
		if retryAfter, ok := s.Pacer.Allow(); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			writeError(w, adwatch.Errorf(adwatch.EBUSY, "too soon, retry in %s", retryAfter.Round(time.Second)))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	if s.Pacer != nil {
		if err := s.Pacer.Jitter(ctx); err != nil {
			writeError(w, adwatch.Errorf(adwatch.ETIMEOUT, "cancelled while waiting: %v", err))
			return
		}
	}

	listing, err := s.Service.Latest(ctx, listURL)
	if err != nil {
		s.log().Error("latest failed", "listUrl", listURL, "err", err)
		writeError(w, err)
		return
	}

	if listing.SameAsLast {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(listing); err != nil {
		s.log().Error("encoding response failed", "err", err)
	}
}

func (s *Server) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func validateListURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return adwatch.Errorf(adwatch.EINVALID, "invalid listing URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return adwatch.Errorf(adwatch.EINVALID, "listing URL must be http(s)")
	}
	if u.Host == "" {
		return adwatch.Errorf(adwatch.EINVALID, "listing URL must be absolute")
	}
	return nil
}

// writeError renders an application error as a JSON body with the matching
// status code. Internal details are not leaked; ErrorMessage already falls
// back to a generic message for unexpected errors.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode(adwatch.ErrorCode(err)))
	json.NewEncoder(w).Encode(map[string]string{"error": adwatch.ErrorMessage(err)})
}

func statusCode(code string) int {
	switch code {
	case adwatch.EINVALID:
		return http.StatusBadRequest
	case adwatch.ENOTFOUND:
		return http.StatusNotFound
	case adwatch.EBUSY:
		return http.StatusTooManyRequests
	case adwatch.ETIMEOUT:
		return http.StatusGatewayTimeout
	case adwatch.EBROWSER:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
