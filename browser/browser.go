// Package browser manages the headless Chrome lifecycle behind the quiz
// renderer: launch or remote attach via Rod, stealth tabs, resource
// blocking, and teardown. One Manager serves all sessions; each session
// opens its own tab.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// NavigateTimeout bounds a single navigation. Default: 30s.
	NavigateTimeout time.Duration

	// SettleDelay is waited after the load event so client-side script
	// can finish building the DOM. Default: 500ms.
	SettleDelay time.Duration

	// BlockedResources lists resource types to drop before they load
	// (fonts, media). Quiz pages only need their DOM rendered.
	BlockedResources []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process shared across quiz sessions.
type Manager struct {
	cfg     Config
	blocked map[proto.NetworkResourceType]bool
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, blocked: blockedTypes(cfg.BlockedResources)}
}

// blockedTypes translates config names into CDP resource types. Singular
// and plural forms are accepted; unknown names are ignored.
func blockedTypes(names []string) map[proto.NetworkResourceType]bool {
	byName := map[string]proto.NetworkResourceType{
		"image":      proto.NetworkResourceTypeImage,
		"font":       proto.NetworkResourceTypeFont,
		"media":      proto.NetworkResourceTypeMedia,
		"stylesheet": proto.NetworkResourceTypeStylesheet,
		"script":     proto.NetworkResourceTypeScript,
	}
	out := make(map[proto.NetworkResourceType]bool, len(names))
	for _, name := range names {
		name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "s")
		if rt, ok := byName[name]; ok {
			out[rt] = true
		}
	}
	return out
}

// blockResources drops requests for the blocked resource types before
// they hit the network.
func (m *Manager) blockResources(page *rod.Page) {
	if len(m.blocked) == 0 {
		return
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if m.blocked[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}

	log := m.cfg.Logger
	var wsURL string

	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	m.browser = b
	return nil
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}

// Tab is one rendered quiz page.
type Tab struct {
	Page    *rod.Page
	PageURL string
}

// OpenTab creates a stealth tab, navigates, and waits for the load event.
// A load-event timeout is tolerated: quiz pages often keep long-polling
// connections open, and the harvested DOM is still usable.
func (m *Manager) OpenTab(ctx context.Context, pageURL string) (*Tab, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	m.blockResources(page)

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	// Let client-side script settle before the DOM is read.
	select {
	case <-navCtx.Done():
	case <-time.After(m.cfg.SettleDelay):
	}

	return &Tab{Page: page, PageURL: pageURL}, nil
}

// HTML serialises the complete DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the full page as a PNG, for pages that render
// their question as pixels instead of text.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := t.Page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Eval runs a JS function on the page and returns its string result.
func (t *Tab) Eval(ctx context.Context, js string) (string, error) {
	res, err := t.Page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
