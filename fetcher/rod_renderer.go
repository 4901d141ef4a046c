package fetcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// RodRenderer fetches pages through a headless Chromium so sections that
// are filled in client side end up in the HTML
type RodRenderer struct {
	browser     *rod.Browser
	logger      *zap.Logger
	stableAfter time.Duration
	timeout     time.Duration
}

// NewRodRenderer launches (or downloads) a browser and connects to it.
// ROD_DATA_DIR, when set, is used as the browser profile directory.
func NewRodRenderer(logger *zap.Logger, timeout time.Duration) (*RodRenderer, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		// Flags for containers
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("no-zygote")

	if dir := os.Getenv("ROD_DATA_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("failed to create browser data directory", zap.String("dir", dir), zap.Error(err))
		} else {
			l = l.UserDataDir(dir)
		}
	}

	// prefer a system browser over downloading one
	if path, found := launcher.LookPath(); found {
		l = l.Bin(path)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodRenderer{
		browser:     browser,
		logger:      logger,
		stableAfter: 500 * time.Millisecond,
		timeout:     timeout,
	}, nil
}

// Render opens url in a fresh tab and returns the DOM once it settles
func (r *RodRenderer) Render(ctx context.Context, url string) (string, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(r.timeout)

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to load page: %w", err)
	}
	if err := page.WaitStable(r.stableAfter); err != nil {
		r.logger.Warn("page did not stabilize, continuing anyway", zap.String("url", url), zap.Error(err))
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Close closes the browser
func (r *RodRenderer) Close() error {
	if r.browser != nil {
		return r.browser.Close()
	}
	return nil
}
