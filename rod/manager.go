// Package rod provides the browser-backed session manager and page loader
// using Chrome automation via go-rod.
package rod

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bkuiper/adwatch"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// DefaultMaxRequests is the default number of logical requests served before
// the browser process is recycled. Chrome accumulates memory over time and
// the baseline never returns to initial levels even with proper page cleanup.
const DefaultMaxRequests = 75

// healthCheckTimeout bounds the pre-use liveness probe.
const healthCheckTimeout = 3 * time.Second

// DefaultIdentities is the rotation pool for per-context fingerprints. A
// small pool of common desktop identities reduces fingerprinting uniformity;
// this is best-effort evasion, not a correctness requirement.
var DefaultIdentities = []adwatch.Identity{
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36", Width: 1920, Height: 1080},
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36", Width: 1440, Height: 900},
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36", Width: 1536, Height: 864},
	{UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36", Width: 1600, Height: 900},
}

// Manager owns the long-lived browser process. It launches the process
// lazily on first use, hands out isolated per-request browsing contexts,
// rotates client identity per context, and recycles the process after a
// crash or after a configured request budget.
//
// Manager is safe for concurrent use, although callers are expected to
// serialize scrapes through their own gate.
type Manager struct {
	mu           sync.Mutex
	browser      *rod.Browser
	launcher     *launcher.Launcher
	requestCount int64
	maxRequests  int64
	identities   []adwatch.Identity
	rng          *rand.Rand
	closed       atomic.Bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxRequests sets the request budget before the browser is recycled.
// Defaults to DefaultMaxRequests if not specified.
func WithMaxRequests(n int64) ManagerOption {
	return func(m *Manager) { m.maxRequests = n }
}

// WithIdentities sets the identity rotation pool. A single-element pool
// makes identity selection deterministic for tests.
func WithIdentities(ids []adwatch.Identity) ManagerOption {
	return func(m *Manager) { m.identities = ids }
}

// NewManager creates a new Manager. The browser process is not launched
// until the first Acquire call. Close must be called when the Manager is no
// longer needed.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		maxRequests: DefaultMaxRequests,
		identities:  DefaultIdentities,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Context is an isolated browsing context (separate cookie/storage jar)
// bound to one logical request. It must be closed after use.
type Context struct {
	// Page is the single page of the context, with identity and stealth
	// script already applied.
	Page *rod.Page

	browser   *rod.Browser
	contextID proto.BrowserBrowserContextID
}

// Close disposes of the page and its browsing context, so state never leaks
// into the next request.
func (c *Context) Close() {
	if c.Page != nil {
		_ = c.Page.Close()
	}
	if c.contextID != "" {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: c.contextID}.Call(c.browser)
	}
}

// Acquire returns a fresh isolated browsing context, launching or
// relaunching the browser process first when needed. A launch failure is
// fatal for the operation and is propagated; the orchestrator applies the
// single whole-operation retry.
func (m *Manager) Acquire(ctx context.Context) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return nil, adwatch.Errorf(adwatch.EINTERNAL, "browser manager is closed")
	}

	if err := m.ensureHealthyLocked(ctx); err != nil {
		return nil, err
	}

	incognito, err := m.browser.Incognito()
	if err != nil {
		return nil, m.browserError("create browsing context", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: incognito.BrowserContextID}.Call(m.browser)
		return nil, m.browserError("create page", err)
	}
	page = page.Context(ctx)

	if err := m.applyIdentity(page); err != nil {
		_ = page.Close()
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: incognito.BrowserContextID}.Call(m.browser)
		return nil, m.browserError("apply identity", err)
	}

	m.requestCount++
	return &Context{Page: page, browser: m.browser, contextID: incognito.BrowserContextID}, nil
}

// Healthy probes the browser process. Returns an EBROWSER error when the
// process is gone or unresponsive, nil when it is fine or not yet launched.
func (m *Manager) Healthy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil
	}
	return m.probeLocked(ctx)
}

// Close tears down the browser process. Close is safe to call multiple times.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teardownLocked()
}

// ensureHealthyLocked launches the browser on first use, and tears down and
// relaunches it when the prior process crashed or exhausted its request
// budget. This is the only automatic recovery path.
func (m *Manager) ensureHealthyLocked(ctx context.Context) error {
	if m.browser != nil {
		recycle := m.requestCount >= m.maxRequests
		if !recycle && m.probeLocked(ctx) != nil {
			recycle = true
		}
		if recycle {
			_ = m.teardownLocked()
		}
	}

	if m.browser == nil {
		if err := m.launchLocked(); err != nil {
			return adwatch.Errorf(adwatch.EBROWSER, "failed to launch browser: %v", err)
		}
		m.requestCount = 0
	}
	return nil
}

// probeLocked pings the browser over CDP with a short deadline.
func (m *Manager) probeLocked(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if _, err := (proto.BrowserGetVersion{}).Call(m.browser.Context(probeCtx)); err != nil {
		return adwatch.Errorf(adwatch.EBROWSER, "browser process unresponsive: %v", err)
	}
	return nil
}

// launchLocked starts a new browser instance with stability flags.
func (m *Manager) launchLocked() error {
	lnchr := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Set("lang", "nl-BE").
		Leakless(true).
		Headless(true)

	u, err := lnchr.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return fmt.Errorf("connecting to browser: %w", err)
	}

	m.browser = browser
	m.launcher = lnchr
	return nil
}

// teardownLocked shuts down the current browser and launcher.
// Must be called with mu held.
func (m *Manager) teardownLocked() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher = nil
	}
	return err
}

// applyIdentity picks an identity from the pool and applies the user agent,
// viewport, and stealth script to the page.
func (m *Manager) applyIdentity(page *rod.Page) error {
	id := m.identities[m.rng.Intn(len(m.identities))]

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return fmt.Errorf("apply stealth script: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      id.UserAgent,
		AcceptLanguage: "nl-BE,nl;q=0.9,fr-BE;q=0.8,en;q=0.7",
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             id.Width,
		Height:            id.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// browserError classifies a failed browser operation: when the process is no
// longer reachable the failure is a crash, otherwise it is internal. The
// orchestrator dispatches on the code, never on error text.
func (m *Manager) browserError(op string, err error) error {
	if m.browser == nil || m.probeLocked(context.Background()) != nil {
		return adwatch.Errorf(adwatch.EBROWSER, "%s: browser process gone: %v", op, err)
	}
	return adwatch.Errorf(adwatch.EINTERNAL, "%s: %v", op, err)
}

// LauncherPID returns the process ID of the browser launcher.
// This method exists for testing purposes to verify proper cleanup.
func (m *Manager) LauncherPID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.launcher == nil {
		return 0
	}
	return m.launcher.PID()
}
