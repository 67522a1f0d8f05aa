package recorder

import (
	"context"
	"encoding/json"
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

// BrowserConfig configures the Chrome instance the recorder drives.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome. Empty = launch
	// a local one.
	RemoteURL string

	// Headless controls the local launch mode. Recording real sessions
	// usually wants headful.
	Headless bool

	// CompanionURL is the SOPify web app origin; its localStorage carries
	// the auth token.
	CompanionURL string

	Logger *slog.Logger
}

// Manager owns the Chrome connection, the open pages registry, and the
// companion tab. It implements Screenshotter and TokenSource for the
// coordinator.
type Manager struct {
	cfg BrowserConfig

	mu        sync.RWMutex
	browser   *rod.Browser
	lnch      *launcher.Launcher
	pages     map[string]*rod.Page // keyed by tab id
	companion *rod.Page
	closed    bool
}

// NewManager creates a Manager. Call Start to launch or connect.
func NewManager(cfg BrowserConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, pages: make(map[string]*rod.Page)}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("recorder: manager is closed")
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		m.cfg.Logger.Info("recorder: connecting to remote browser", "url", wsURL)
	} else {
		l := launcher.New().Headless(m.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("recorder: launch browser: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.cfg.Logger.Info("recorder: launched local chrome", "headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("recorder: connect browser: %w", err)
	}
	m.browser = b
	return b, nil
}

// Browser returns the rod handle. Thread-safe.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// OpenCompanion opens the web app tab used for token sync.
func (m *Manager) OpenCompanion(ctx context.Context) (*rod.Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("recorder: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("recorder: create companion tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(m.cfg.CompanionURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("recorder: navigate companion: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("recorder: companion load timeout", "error", err)
	}

	m.mu.Lock()
	m.companion = page
	m.mu.Unlock()
	return page, nil
}

// RegisterPage makes a tab capturable by id.
func (m *Manager) RegisterPage(tabID string, page *rod.Page) {
	m.mu.Lock()
	m.pages[tabID] = page
	m.mu.Unlock()
}

// UnregisterPage drops a closed tab.
func (m *Manager) UnregisterPage(tabID string) {
	m.mu.Lock()
	delete(m.pages, tabID)
	m.mu.Unlock()
}

// CaptureVisible takes a lossless PNG screenshot of the tab's viewport
// and returns it as a data URI.
func (m *Manager) CaptureVisible(ctx context.Context, tabID string) (string, error) {
	m.mu.RLock()
	page := m.pages[tabID]
	m.mu.RUnlock()
	if page == nil {
		return "", fmt.Errorf("recorder: unknown tab %s", tabID)
	}

	raw, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", fmt.Errorf("recorder: screenshot: %w", err)
	}
	return EncodePNGDataURI(raw), nil
}

// ReadPageToken evaluates the companion page's localStorage for the auth
// token and user blob.
func (m *Manager) ReadPageToken(ctx context.Context) (string, *User, error) {
	m.mu.RLock()
	page := m.companion
	m.mu.RUnlock()
	if page == nil {
		return "", nil, fmt.Errorf("recorder: no companion tab")
	}

	res, err := page.Context(ctx).Eval(`() => localStorage.getItem("token") || ""`)
	if err != nil {
		return "", nil, fmt.Errorf("recorder: read token: %w", err)
	}
	token := res.Value.Str()
	if token == "" {
		return "", nil, nil
	}

	var user *User
	if ures, err := page.Context(ctx).Eval(`() => localStorage.getItem("user") || ""`); err == nil {
		if raw := ures.Value.Str(); raw != "" {
			var u User
			if json.Unmarshal([]byte(raw), &u) == nil {
				user = &u
			}
		}
	}
	return token, user, nil
}

// Close shuts the browser down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			return fmt.Errorf("recorder: close browser: %w", err)
		}
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
	}
	return nil
}

// ObservableURL reports whether a tab can be recorded. Browser-internal
// pages cannot take content scripts.
func ObservableURL(u string) bool {
	if u == "" {
		return false
	}
	for _, prefix := range []string{"chrome://", "chrome-extension://", "edge://", "devtools://", "about:"} {
		if strings.HasPrefix(u, prefix) {
			return false
		}
	}
	return true
}
