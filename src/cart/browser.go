// Package cart drives the retailer's real shopping cart through a headless
// browser. All operations are serialized: the cart session is a single
// browser profile and concurrent mutations would race on it.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/spf13/afero"
)

// BrowserConfig controls how the cart browser is launched and where its
// artifacts live.
type BrowserConfig struct {
	// Headless runs the browser without a visible window. On by default in
	// the service wiring.
	Headless bool

	// StateFile persists cookies across runs so the retailer cart survives
	// process restarts. Empty disables persistence.
	StateFile string

	// ClipsDir receives the screenshot captured after each cart action.
	ClipsDir string

	// ControlURL attaches to an already-running browser instead of
	// launching one.
	ControlURL string
}

// Browser owns a lazily-launched headless browser and the persisted cookie
// state shared by every cart operation.
type Browser struct {
	cfg    BrowserConfig
	fs     afero.Fs
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowser creates a manager. The browser itself launches on first use.
func NewBrowser(cfg BrowserConfig, fs afero.Fs, logger *slog.Logger) *Browser {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{cfg: cfg, fs: fs, logger: logger.With("component", "cart_browser")}
}

func (b *Browser) ensure(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		b.logger.Warn("stale browser connection, relaunching")
		_ = b.browser.Close()
		b.browser = nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		url, err := launcher.New().Headless(b.cfg.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.browser = browser
	b.logger.Debug("browser connected", "control_url", controlURL)
	return browser, nil
}

// NewPage opens a page, restores saved cookies, and navigates to url.
func (b *Browser) NewPage(ctx context.Context, url string, timeout time.Duration) (*rod.Page, error) {
	browser, err := b.ensure(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             1280,
		Height:            900,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		b.logger.Warn("failed to set viewport", "error", err)
	}

	b.restoreCookies(page)

	if err := page.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("wait for load: %w", err)
	}
	return page, nil
}

// SaveState snapshots the page's cookies to the state file so the cart
// persists across restarts. Best effort.
func (b *Browser) SaveState(page *rod.Page) {
	if b.cfg.StateFile == "" {
		return
	}
	res, err := proto.NetworkGetCookies{}.Call(page)
	if err != nil {
		b.logger.Warn("failed to snapshot cookies", "error", err)
		return
	}
	data, err := json.MarshalIndent(res.Cookies, "", "  ")
	if err != nil {
		return
	}
	if err := b.fs.MkdirAll(filepath.Dir(b.cfg.StateFile), 0o755); err != nil {
		b.logger.Warn("failed to create state dir", "error", err)
		return
	}
	if err := afero.WriteFile(b.fs, b.cfg.StateFile, data, 0o600); err != nil {
		b.logger.Warn("failed to write cart state", "error", err)
	}
}

func (b *Browser) restoreCookies(page *rod.Page) {
	if b.cfg.StateFile == "" {
		return
	}
	data, err := afero.ReadFile(b.fs, b.cfg.StateFile)
	if err != nil {
		return
	}
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		b.logger.Warn("cart state file unreadable, ignoring", "error", err)
		return
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}
	if len(params) > 0 {
		_ = page.SetCookies(params)
	}
}

// CaptureClip screenshots the page into the clips directory and returns the
// file name (not the full path) for embedding in replies.
func (b *Browser) CaptureClip(page *rod.Page, prefix string) (string, error) {
	if b.cfg.ClipsDir == "" {
		return "", nil
	}
	data, err := page.Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	if err := b.fs.MkdirAll(b.cfg.ClipsDir, 0o755); err != nil {
		return "", fmt.Errorf("create clips dir: %w", err)
	}
	name := fmt.Sprintf("%s_%d.png", prefix, time.Now().UnixMilli())
	if err := afero.WriteFile(b.fs, filepath.Join(b.cfg.ClipsDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	return name, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
