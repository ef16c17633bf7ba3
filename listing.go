package adwatch

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Listing is the structured record describing the first organic entry of a
// listing page. A Listing is constructed fresh per extraction attempt and is
// never mutated after it is returned.
type Listing struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	AdID         string    `json:"adId,omitempty"`
	PriceRaw     string    `json:"priceRaw,omitempty"`
	PriceEUR     *int      `json:"priceEUR,omitempty"`
	Date         string    `json:"date,omitempty"`
	Year         string    `json:"year,omitempty"`
	MileageKm    *int      `json:"mileageKm,omitempty"`
	Fuel         string    `json:"fuel,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	Body         string    `json:"body,omitempty"`
	Options      []string  `json:"options,omitempty"`
	SellerName   string    `json:"sellerName,omitempty"`
	SellerCity   string    `json:"sellerCity,omitempty"`
	ScrapedAt    time.Time `json:"scrapedAt"`
	ListURLUsed  string    `json:"listUrlUsed"`

	// SameAsLast is set when the change guard observed the same listing on
	// two consecutive scans (including one forced re-scan).
	SameAsLast bool `json:"sameAsLast,omitempty"`
}

// Validate returns an error if the listing lacks required fields.
// A listing is only ever emitted with a non-empty URL and title.
func (l *Listing) Validate() error {
	if l.URL == "" {
		return Errorf(EINVALID, "listing URL required")
	}
	if l.Title == "" {
		return Errorf(EINVALID, "listing title required")
	}
	return nil
}

// Signature returns a stable content hash of the listing's identifying
// fields. The change guard falls back to it when the URL yields no ad ID.
func (l *Listing) Signature() uint64 {
	return xxhash.Sum64String(l.URL + "|" + l.Title + "|" + l.PriceRaw + "|" + l.Date)
}

// ListingPage is a rendered snapshot of a listing page, ready for
// classification and extraction.
type ListingPage struct {
	// ListURL is the source query URL, without the cache-busting token.
	ListURL string

	// BaseURL is the final page URL, used to resolve relative links.
	BaseURL string

	// HTML is the rendered document after the settle phase.
	HTML string

	LoadedAt time.Time
}

// Seen records the identity of the last successfully observed listing.
// It is replaced atomically on each successful scan.
type Seen struct {
	AdID       string    `json:"adId"`
	Signature  uint64    `json:"signature"`
	ObservedAt time.Time `json:"observedAt"`
}

// Matches reports whether a listing refers to the same ad as the recorded
// observation. Ad IDs are compared when both sides have one; otherwise the
// content signature is compared.
func (s *Seen) Matches(l *Listing) bool {
	if s == nil || l == nil {
		return false
	}
	if s.AdID != "" && l.AdID != "" {
		return s.AdID == l.AdID
	}
	return s.Signature == l.Signature()
}

// Loader navigates to a listing URL, waits for the listing container to
// become structurally ready and returns the rendered snapshot.
// Implementations may use browser automation.
type Loader interface {
	// Load returns ETIMEOUT if the listing container never attaches within
	// the navigation budget, and EBROWSER if the browser process crashed.
	Load(ctx context.Context, listURL string) (*ListingPage, error)

	// Close releases browser resources.
	Close() error
}

// Extractor locates the first organic entry in a rendered snapshot and
// extracts it into a Listing. Returns ENOTFOUND when the candidate window
// holds no qualifying, non-sponsored, complete entry.
type Extractor interface {
	First(page *ListingPage) (*Listing, error)
}

// ListingService is the full scrape operation exposed to callers:
// load, classify, extract, and de-duplicate against the last observation.
type ListingService interface {
	Latest(ctx context.Context, listURL string) (*Listing, error)
}

// StateService persists the cross-request state: the last observed listing
// identity and, optionally, a serialized browser cookie jar. Both are opaque
// to the rest of the system.
type StateService interface {
	// LastSeen returns ENOTFOUND when nothing has been observed yet.
	LastSeen(ctx context.Context) (*Seen, error)
	SetLastSeen(ctx context.Context, seen *Seen) error

	// Cookies returns ENOTFOUND when no jar has been persisted.
	Cookies(ctx context.Context) ([]byte, error)
	SetCookies(ctx context.Context, jar []byte) error
}

// Pacer is the pacing policy applied between scrape operations. It exists as
// an explicit interface so evasion delays can be disabled in tests.
type Pacer interface {
	// Allow reports whether a new operation may begin now. When the minimum
	// interval since the previous operation has not elapsed, it returns the
	// remaining wait and false without consuming the slot.
	Allow() (retryAfter time.Duration, ok bool)

	// Jitter sleeps a randomized delay before the operation starts.
	Jitter(ctx context.Context) error
}

// Identity is a browser fingerprint chosen per browsing context.
type Identity struct {
	UserAgent string
	Width     int
	Height    int
}
