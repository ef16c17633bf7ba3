package adwatch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rules holds the empirically tuned keyword sets used for sponsored
// detection and attribute classification. The remote site's markup and copy
// change independently of this design, so the sets are configuration rather
// than hard logic. Keywords are matched diacritic-folded and word-bounded.
type Rules struct {
	Sponsored    []string
	Fuel         []string
	Transmission []string
	Body         []string
}

// DefaultRules returns the keyword sets tuned against 2dehands/Marktplaats
// style markup (Dutch and French copy, with English fallbacks).
func DefaultRules() *Rules {
	return &Rules{
		Sponsored: []string{
			"topadvertentie", "topzoekertje", "gesponsord", "sponsored",
			"publicite", "annonce sponsorisee", "advertentie",
		},
		Fuel: []string{
			"benzine", "diesel", "elektrisch", "hybride", "lpg", "cng",
			"essence", "electrique", "electric", "petrol", "hybrid",
		},
		Transmission: []string{
			"automaat", "handgeschakeld", "semi-automaat",
			"automatique", "manuelle", "automatic", "manual",
		},
		Body: []string{
			"hatchback", "sedan", "berline", "break", "stationwagen", "suv",
			"cabrio", "cabriolet", "coupe", "mpv", "monovolume",
			"bestelwagen", "pick-up",
		},
	}
}

// Attributes holds the semantic fields classified from a candidate's
// free-text attribute list. Each field is either empty or the first match
// found across the list; a field is never overwritten once set.
type Attributes struct {
	Year         string
	MileageKm    *int
	Fuel         string
	Transmission string
	Body         string
}

var (
	yearRE    = regexp.MustCompile(`\b(\d{4})\b`)
	mileageRE = regexp.MustCompile(`(?i)\b([\d.,\s]*\d)\s*km\b`)
	wsRE      = regexp.MustCompile(`\s+`)
	digitsRE  = regexp.MustCompile(`\D`)

	// Ad IDs are derived from listing URLs: the marketplace-specific
	// m<digits>- prefix first, then a generic long digit run in the path.
	adIDPrefixRE = regexp.MustCompile(`m(\d+)-`)
	adIDPathRE   = regexp.MustCompile(`/(\d{9,})`)
)

// Year tokens outside this range are treated as arbitrary numbers, not
// model years.
const (
	minYear = 1950
	maxYear = 2035
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(wsRE.ReplaceAllString(s, " "))
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases a string and strips diacritics, for keyword matching.
// The original string is preserved for output by callers.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// ContainsWord reports whether needle occurs in hay bounded by non-letter,
// non-digit runes. It avoids false positives on substrings (for example a
// bare "advertentie" keyword must not match "topadvertentiekosten").
// Both arguments are expected to be folded already.
func ContainsWord(hay, needle string) bool {
	if needle == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(hay[from:], needle)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(needle)

		before := true
		if i > 0 {
			r, _ := utf8.DecodeLastRuneInString(hay[:i])
			before = !isWordRune(r)
		}
		after := true
		if end < len(hay) {
			r, _ := utf8.DecodeRuneInString(hay[end:])
			after = !isWordRune(r)
		}
		if before && after {
			return true
		}
		from = i + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MatchesAny reports whether any keyword occurs word-bounded in the folded
// form of text.
func MatchesAny(text string, keywords []string) bool {
	folded := Fold(text)
	for _, kw := range keywords {
		if ContainsWord(folded, kw) {
			return true
		}
	}
	return false
}

// firstKeyword returns the first keyword that occurs word-bounded in folded,
// or "" when none does.
func firstKeyword(folded string, keywords []string) string {
	for _, kw := range keywords {
		if ContainsWord(folded, kw) {
			return kw
		}
	}
	return ""
}

// ClassifyAttributes classifies an unordered list of short attribute strings
// into semantic fields. It is best-effort: ambiguous or unrecognized text
// leaves the corresponding field empty, and it never fails. Matching folds
// diacritics, but assigned values preserve the original attribute text.
func ClassifyAttributes(attrs []string, rules *Rules) Attributes {
	if rules == nil {
		rules = DefaultRules()
	}
	var out Attributes
	for _, raw := range attrs {
		attr := CleanText(raw)
		if attr == "" {
			continue
		}

		if out.Year == "" {
			if y := extractYear(attr); y != "" {
				out.Year = y
				continue
			}
		}
		if out.MileageKm == nil {
			if km, ok := extractMileage(attr); ok {
				out.MileageKm = &km
				continue
			}
		}

		folded := Fold(attr)
		if out.Fuel == "" && firstKeyword(folded, rules.Fuel) != "" {
			out.Fuel = attr
			continue
		}
		if out.Transmission == "" && firstKeyword(folded, rules.Transmission) != "" {
			out.Transmission = attr
			continue
		}
		if out.Body == "" && firstKeyword(folded, rules.Body) != "" {
			out.Body = attr
		}
	}
	return out
}

// extractYear returns the first 4-digit token within the model-year range.
func extractYear(s string) string {
	for _, m := range yearRE.FindAllString(s, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n >= minYear && n <= maxYear {
			return m
		}
	}
	return ""
}

// extractMileage parses a "<digits with optional separators> km" token.
func extractMileage(s string) (int, bool) {
	m := mileageRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	digits := digitsRE.ReplaceAllString(m[1], "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParsePrice strips all non-digit characters from raw price text and parses
// the remainder. Text with no digits yields (nil); the raw text is preserved
// by the caller either way.
func ParsePrice(raw string) *int {
	digits := digitsRE.ReplaceAllString(raw, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// AdIDFromURL derives the stable numeric ad identifier from a listing URL.
// It is a pure function of the URL: the marketplace-prefixed pattern is
// tried first, then the generic digit-run fallback. No match yields "".
func AdIDFromURL(url string) string {
	if m := adIDPrefixRE.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := adIDPathRE.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}
