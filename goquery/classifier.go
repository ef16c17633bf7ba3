package goquery

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/bkuiper/adwatch"
)

// DefaultMaxCandidates bounds the classifier's scan window to cap cost on
// long pages.
const DefaultMaxCandidates = 25

// classifier decides which cards in the candidate window are promoted.
// Given an identical snapshot it always reaches the same verdicts; ties are
// broken strictly by document order.
type classifier struct {
	selectors *Selectors
	rules     *adwatch.Rules
}

// qualifies reports whether a card is a candidate at all. Only entries that
// expose the posting-date trait are considered.
func (c *classifier) qualifies(card *goquery.Selection) bool {
	return card.Find(c.selectors.Date).Length() > 0
}

// sponsored reports whether a qualifying card is promoted. A card is
// sponsored when any of the following holds:
//
//   - a dedicated priority/promotion marker element is present;
//   - the card text matches the multilingual sponsored keyword set,
//     word-bounded to avoid false positives on substrings;
//   - structural fallback: the card lacks both a recognizable title element
//     and a link, which marks promo placeholders.
func (c *classifier) sponsored(card *goquery.Selection) bool {
	if card.Find(c.selectors.PriorityMarker).Length() > 0 {
		return true
	}
	if adwatch.MatchesAny(card.Text(), c.rules.Sponsored) {
		return true
	}
	return firstMatch(card, c.selectors.Title) == nil && firstMatch(card, c.selectors.Link) == nil
}
