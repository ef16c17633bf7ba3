package goquery

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bkuiper/adwatch"
)

// Ensure Scanner implements adwatch.Extractor at compile time.
var _ adwatch.Extractor = (*Scanner)(nil)

// errIncompleteCard rejects an individual candidate that lacks required
// fields. It is a control-flow signal: the scan advances to the next
// candidate and the error is never surfaced to callers.
var errIncompleteCard = errors.New("incomplete card")

// Scanner locates the first organic listing entry in a rendered snapshot and
// extracts it into an adwatch.Listing.
type Scanner struct {
	selectors     *Selectors
	rules         *adwatch.Rules
	maxCandidates int
	now           func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithSelectors overrides the default selector chains.
func WithSelectors(s *Selectors) Option {
	return func(sc *Scanner) { sc.selectors = s }
}

// WithRules overrides the default keyword rule sets.
func WithRules(r *adwatch.Rules) Option {
	return func(sc *Scanner) { sc.rules = r }
}

// WithMaxCandidates bounds the scan window.
// Defaults to DefaultMaxCandidates (25) if not specified.
func WithMaxCandidates(n int) Option {
	return func(sc *Scanner) { sc.maxCandidates = n }
}

// WithClock overrides the scrapedAt timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(sc *Scanner) { sc.now = now }
}

// NewScanner creates a new Scanner with default selectors and rules.
func NewScanner(opts ...Option) *Scanner {
	sc := &Scanner{
		selectors:     DefaultSelectors(),
		rules:         adwatch.DefaultRules(),
		maxCandidates: DefaultMaxCandidates,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// First scans cards in document order up to the candidate window and returns
// the first entry that qualifies, is not sponsored, and extracts completely.
// Returns ENOTFOUND when the window is exhausted.
func (sc *Scanner) First(page *adwatch.ListingPage) (*adwatch.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, adwatch.Errorf(adwatch.EINVALID, "failed to parse listing page: %v", err)
	}

	base, err := url.Parse(page.BaseURL)
	if err != nil {
		return nil, adwatch.Errorf(adwatch.EINVALID, "invalid page base URL: %v", err)
	}

	cls := &classifier{selectors: sc.selectors, rules: sc.rules}

	var result *adwatch.Listing
	doc.Find(sc.selectors.Card).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= sc.maxCandidates {
			return false
		}
		if !cls.qualifies(card) || cls.sponsored(card) {
			return true
		}

		listing, err := sc.extract(card, base, page)
		if err != nil {
			// Incomplete cards are skipped; the scan continues.
			return true
		}
		result = listing
		return false
	})

	if result == nil {
		return nil, adwatch.Errorf(adwatch.ENOTFOUND, "no organic listing found in the first %d entries", sc.maxCandidates)
	}
	return result, nil
}

// extract pulls required and optional fields from a card. Required fields
// (URL, title) walk their fallback chains and reject the card with
// errIncompleteCard when even the final fallback misses. Optional fields
// swallow absence into zero values.
func (sc *Scanner) extract(card *goquery.Selection, base *url.URL, page *adwatch.ListingPage) (*adwatch.Listing, error) {
	link := firstMatch(card, sc.selectors.Link)
	if link == nil {
		return nil, errIncompleteCard
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return nil, errIncompleteCard
	}
	abs := resolveURL(base, href)
	if abs == "" {
		return nil, errIncompleteCard
	}

	title := ""
	if el := firstMatch(card, sc.selectors.Title); el != nil {
		title = adwatch.CleanText(el.Text())
	}
	if title == "" {
		return nil, errIncompleteCard
	}

	listing := &adwatch.Listing{
		URL:         abs,
		Title:       title,
		AdID:        adwatch.AdIDFromURL(abs),
		Date:        textOf(card, []string{sc.selectors.Date}),
		SellerName:  textOf(card, sc.selectors.SellerName),
		SellerCity:  textOf(card, sc.selectors.SellerCity),
		ScrapedAt:   sc.now().UTC(),
		ListURLUsed: page.ListURL,
	}

	if raw := textOf(card, sc.selectors.Price); raw != "" {
		listing.PriceRaw = raw
		listing.PriceEUR = adwatch.ParsePrice(raw)
	}

	attrs := adwatch.ClassifyAttributes(textsOf(card, sc.selectors.Attributes), sc.rules)
	listing.Year = attrs.Year
	listing.MileageKm = attrs.MileageKm
	listing.Fuel = attrs.Fuel
	listing.Transmission = attrs.Transmission
	listing.Body = attrs.Body

	listing.Options = textsOf(card, sc.selectors.Options)

	return listing, nil
}

// textOf returns the cleaned text of the first chain match, or "".
func textOf(card *goquery.Selection, chain []string) string {
	el := firstMatch(card, chain)
	if el == nil {
		return ""
	}
	return adwatch.CleanText(el.Text())
}

// textsOf returns the cleaned texts of every element matched by the first
// selector in the chain that matches anything, preserving document order.
func textsOf(card *goquery.Selection, chain []string) []string {
	for _, sel := range chain {
		found := card.Find(sel)
		if found.Length() == 0 {
			continue
		}
		var out []string
		found.Each(func(_ int, el *goquery.Selection) {
			if txt := adwatch.CleanText(el.Text()); txt != "" {
				out = append(out, txt)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// resolveURL resolves a relative href against the page URL.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
