package rod

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bkuiper/adwatch"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Ensure Loader implements adwatch.Loader at compile time.
var _ adwatch.Loader = (*Loader)(nil)

// Default time budgets for the individual load steps. Every navigation,
// selector wait, and read is bounded; only the container wait is fatal.
const (
	DefaultNavTimeout     = 20 * time.Second
	DefaultSettleTimeout  = 5 * time.Second
	DefaultConsentTimeout = 3 * time.Second
	DefaultScrollBudget   = 6 * time.Second
	DefaultScrollStep     = 800
	DefaultMinCandidates  = 3

	scrollPause = 250 * time.Millisecond
)

// blockedResourcePatterns lists resource classes irrelevant to extraction.
// Blocking them reduces load time and memory.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico", "*.avif",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
	"*.mp4", "*.webm", "*.mov", "*.mp3", "*.aac", "*.ogg",
	"*google-analytics*", "*googletagmanager*", "*doubleclick*", "*criteo*",
}

// consentStrategy is one attempt at dismissing a consent prompt. Strategies
// run in order, each with its own short timeout; the absence of a banner is
// not an error.
type consentStrategy struct {
	name   string
	locate func(page *rod.Page) (*rod.Element, error)
}

func consentStrategies() []consentStrategy {
	return []consentStrategy{
		{
			name: "onetrust accept button",
			locate: func(page *rod.Page) (*rod.Element, error) {
				return page.Element("#onetrust-accept-btn-handler")
			},
		},
		{
			name: "continue without accepting label",
			locate: func(page *rod.Page) (*rod.Element, error) {
				return page.ElementR("button", `(?i)(verder zonder (te )?accepteren|continuer sans accepter|continue without accepting)`)
			},
		},
		{
			name: "accept label",
			locate: func(page *rod.Page) (*rod.Element, error) {
				return page.ElementR("button", `(?i)^\s*(akkoord|accepteren|alles accepteren|accepter|tout accepter|accept( all)?)\s*$`)
			},
		},
	}
}

// Loader navigates to a cache-busted listing URL, dismisses consent prompts,
// waits for the listing container to attach, triggers lazy-loaded content by
// incremental scrolling, and returns the rendered snapshot.
type Loader struct {
	manager *Manager
	state   adwatch.StateService
	logger  *slog.Logger

	navTimeout     time.Duration
	settleTimeout  time.Duration
	consentTimeout time.Duration
	scrollBudget   time.Duration
	scrollStep     int
	minCandidates  int

	cardSelector string
	dateSelector string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithNavTimeout bounds navigation and the listing container wait.
func WithNavTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.navTimeout = d }
}

// WithScrollBudget bounds the wall-clock time spent on incremental scrolling.
func WithScrollBudget(d time.Duration) LoaderOption {
	return func(l *Loader) { l.scrollBudget = d }
}

// WithMinCandidates sets the number of date-bearing cards the settle phase
// scrolls for before scanning begins.
func WithMinCandidates(n int) LoaderOption {
	return func(l *Loader) { l.minCandidates = n }
}

// WithCookieStore persists the browsing identity (cookie jar) across runs.
// Contexts stay isolated per request; seeding is explicitly opted into here
// to reduce friction with the remote site.
func WithCookieStore(state adwatch.StateService) LoaderOption {
	return func(l *Loader) { l.state = state }
}

// WithLogger sets the logger for non-fatal load events (consent dismissal,
// settle timeouts). Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithReadinessSelectors overrides the card and posting-date selectors used
// by the readiness gate. They default to the goquery package's defaults.
func WithReadinessSelectors(card, date string) LoaderOption {
	return func(l *Loader) {
		l.cardSelector = card
		l.dateSelector = date
	}
}

// NewLoader creates a new Loader on top of a session Manager.
func NewLoader(manager *Manager, opts ...LoaderOption) *Loader {
	l := &Loader{
		manager:        manager,
		logger:         slog.New(slog.DiscardHandler),
		navTimeout:     DefaultNavTimeout,
		settleTimeout:  DefaultSettleTimeout,
		consentTimeout: DefaultConsentTimeout,
		scrollBudget:   DefaultScrollBudget,
		scrollStep:     DefaultScrollStep,
		minCandidates:  DefaultMinCandidates,
		cardSelector:   "li.hz-Listing",
		dateSelector:   ".hz-Listing-listingDate, [data-testid='listing-date']",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CacheBust appends a uniqueness token to a URL's query string, placed
// before any fragment identifier, to defeat caching layers between the
// engine and the origin. The rest of the URL passes through unmodified.
func CacheBust(listURL, token string) string {
	base, fragment := listURL, ""
	if i := strings.Index(listURL, "#"); i >= 0 {
		base, fragment = listURL[:i], listURL[i:]
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "_cb=" + token + fragment
}

// Load navigates to the listing URL and returns the rendered snapshot once
// the listing container is structurally ready. Returns ETIMEOUT when no
// listing container ever attaches within the navigation budget, and EBROWSER
// when the browser process crashed.
func (l *Loader) Load(ctx context.Context, listURL string) (*adwatch.ListingPage, error) {
	bctx, err := l.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer bctx.Close()
	page := bctx.Page

	if err := (proto.NetworkSetBlockedURLs{Urls: blockedResourcePatterns}).Call(page); err != nil {
		l.logger.Debug("set blocked urls failed", "err", err)
	}

	// Fresh start: drop anything inherited, then seed the persisted jar
	// when one was opted into.
	if err := (proto.NetworkClearBrowserCookies{}).Call(page); err != nil {
		l.logger.Debug("clear cookies failed", "err", err)
	}
	l.seedCookies(ctx, page)

	if err := l.navigate(ctx, page, CacheBust(listURL, uuid.NewString())); err != nil {
		return nil, l.classify(ctx, "navigate", err)
	}

	l.dismissConsent(page)

	// Readiness gate: the operation fails unless at least one listing card
	// attaches in time.
	if _, err := page.Timeout(l.navTimeout).Element(l.cardSelector); err != nil {
		return nil, l.classify(ctx, "wait for listing container", err)
	}

	l.settle(ctx, page)
	l.scroll(ctx, page)

	html, err := page.HTML()
	if err != nil {
		return nil, l.classify(ctx, "read page", err)
	}
	info, err := page.Info()
	if err != nil {
		return nil, l.classify(ctx, "read page info", err)
	}

	l.saveCookies(ctx, page)

	return &adwatch.ListingPage{
		ListURL:  listURL,
		BaseURL:  info.URL,
		HTML:     html,
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Close releases browser resources.
func (l *Loader) Close() error {
	return l.manager.Close()
}

// navigate starts navigation and waits for minimal DOM readiness, not full
// load.
func (l *Loader) navigate(ctx context.Context, page *rod.Page, url string) error {
	navPage := page.Timeout(l.navTimeout)
	wait := navPage.WaitEvent(&proto.PageDomContentEventFired{})
	if err := navPage.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

// settle waits for network quiescence, best effort: a timeout here is
// tolerated, not fatal.
func (l *Loader) settle(ctx context.Context, page *rod.Page) {
	settleCtx, cancel := context.WithTimeout(ctx, l.settleTimeout)
	defer cancel()
	wait := page.Context(settleCtx).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	wait()
	if settleCtx.Err() != nil {
		l.logger.Debug("settle phase timed out, continuing")
	}
}

// dismissConsent tries the consent strategies in order. Failure is
// non-fatal: a missing banner is indistinguishable from a failed dismissal
// and both are safe to ignore.
func (l *Loader) dismissConsent(page *rod.Page) {
	for _, strategy := range consentStrategies() {
		el, err := strategy.locate(page.Timeout(l.consentTimeout))
		if err != nil {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			l.logger.Debug("consent dismissal failed", "strategy", strategy.name, "err", err)
			continue
		}
		l.logger.Debug("consent dismissed", "strategy", strategy.name)
		return
	}
}

// countCandidatesJS counts cards exposing the posting-date trait; the scroll
// loop targets a minimum count of them before scanning begins.
const countCandidatesJS = `(cardSel, dateSel) => {
	const cards = document.querySelectorAll(cardSel);
	let n = 0;
	for (const c of cards) {
		if (c.querySelector(dateSel)) n++;
	}
	return n;
}`

// scroll nudges the viewport down in fixed steps until enough qualifying
// candidates have rendered or the scroll budget elapses. The target renders
// listings lazily as the viewport approaches them.
func (l *Loader) scroll(ctx context.Context, page *rod.Page) {
	deadline := time.Now().Add(l.scrollBudget)
	for {
		obj, err := page.Eval(countCandidatesJS, l.cardSelector, l.dateSelector)
		if err == nil && obj.Value.Int() >= l.minCandidates {
			return
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			l.logger.Debug("scroll budget elapsed before candidate target")
			return
		}
		if _, err := page.Eval(`(y) => window.scrollBy(0, y)`, l.scrollStep); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(scrollPause):
		}
	}
}

// seedCookies loads the persisted jar into the fresh context, when a store
// is configured and a jar exists.
func (l *Loader) seedCookies(ctx context.Context, page *rod.Page) {
	if l.state == nil {
		return
	}
	jar, err := l.state.Cookies(ctx)
	if err != nil {
		if adwatch.ErrorCode(err) != adwatch.ENOTFOUND {
			l.logger.Debug("load cookie jar failed", "err", err)
		}
		return
	}
	var cookies []*proto.NetworkCookieParam
	if err := json.Unmarshal(jar, &cookies); err != nil {
		l.logger.Debug("decode cookie jar failed", "err", err)
		return
	}
	if err := page.SetCookies(cookies); err != nil {
		l.logger.Debug("seed cookies failed", "err", err)
	}
}

// saveCookies persists the context's jar for the next run.
func (l *Loader) saveCookies(ctx context.Context, page *rod.Page) {
	if l.state == nil {
		return
	}
	cookies, err := page.Cookies(nil)
	if err != nil {
		l.logger.Debug("read cookies failed", "err", err)
		return
	}
	jar, err := json.Marshal(cookies)
	if err != nil {
		return
	}
	if err := l.state.SetCookies(ctx, jar); err != nil {
		l.logger.Debug("persist cookie jar failed", "err", err)
	}
}

// classify maps a failed load step to the error taxonomy: a crashed browser
// process wins, then deadline expiry, then internal.
func (l *Loader) classify(ctx context.Context, op string, err error) error {
	var appErr *adwatch.Error
	if errors.As(err, &appErr) {
		return err
	}
	if herr := l.manager.Healthy(context.WithoutCancel(ctx)); herr != nil {
		return adwatch.Errorf(adwatch.EBROWSER, "%s: %v", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return adwatch.Errorf(adwatch.ETIMEOUT, "%s: page never became ready: %v", op, err)
	}
	return adwatch.Errorf(adwatch.ETIMEOUT, "%s: %v", op, err)
}
