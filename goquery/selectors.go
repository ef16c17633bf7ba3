// Package goquery classifies and extracts listing entries from rendered
// HTML snapshots. It implements adwatch.Extractor: sponsored detection over
// a bounded candidate window, then field extraction via ordered selector
// fallback chains.
package goquery

import "github.com/PuerkitoBio/goquery"

// Selectors holds the CSS selectors used to locate cards and fields. Field
// selectors are ordered fallback chains: the most specific structural marker
// first, down to a generic fallback. They are configuration, tuned against
// 2dehands/Marktplaats style markup.
type Selectors struct {
	// Card matches one listing entry.
	Card string

	// Date is the posting-date trait that qualifies a card as a normal,
	// non-promotional entry. Promo blocks are frequently malformed or lack
	// it entirely.
	Date string

	// PriorityMarker is the dedicated promotion marker element.
	PriorityMarker string

	Link       []string
	Title      []string
	Price      []string
	SellerName []string
	SellerCity []string
	Attributes []string
	Options    []string
}

// DefaultSelectors returns the selector chains for 2dehands/Marktplaats
// listing markup.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Card:           "li.hz-Listing",
		Date:           ".hz-Listing-listingDate, [data-testid='listing-date']",
		PriorityMarker: ".hz-Listing-priority, [data-testid='listing-priority']",
		Link: []string{
			"a[href*='/v/auto-s/']",
			"a[href*='/v/']",
			"a[href]",
		},
		Title: []string{
			"[data-testid='listing-title']",
			"h3",
			"h2",
			"a[href]",
		},
		Price: []string{
			"[data-testid='price-box-price']",
			".hz-Listing-price",
			"[class*='price']",
		},
		SellerName: []string{
			"[data-testid='seller-name']",
			".hz-Listing-seller-name",
		},
		SellerCity: []string{
			"[data-testid='location-name']",
			".hz-Listing-location",
		},
		Attributes: []string{
			".hz-Listing-attributes .hz-Attribute",
			".hz-Listing-attributes span",
		},
		Options: []string{
			".hz-Listing-extendedAttributes span",
		},
	}
}

// firstMatch walks a selector fallback chain and returns the first non-empty
// selection, or nil when every selector in the chain misses.
func firstMatch(card *goquery.Selection, chain []string) *goquery.Selection {
	for _, sel := range chain {
		if found := card.Find(sel); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}
