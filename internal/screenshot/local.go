package screenshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const pageCloseTimeout = 5 * time.Second

// LocalOptions configures the headless browser backend.
type LocalOptions struct {
	Enabled bool
	// Bin is the browser binary. Empty means search the usual locations.
	Bin     string
	Quality int
	// Settle is how long to wait after the load event for late rendering.
	Settle time.Duration
}

// Local renders pages in a headless Chromium it launches on first use.
type Local struct {
	bin     string
	quality int
	settle  time.Duration

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewLocal creates a Local backend. It is unavailable when disabled or when
// no browser binary can be found; it never downloads one.
func NewLocal(opts LocalOptions) *Local {
	l := &Local{quality: opts.Quality, settle: opts.Settle}
	if l.quality <= 0 || l.quality > 100 {
		l.quality = DefaultQuality
	}
	if l.settle <= 0 {
		l.settle = 500 * time.Millisecond
	}
	if !opts.Enabled {
		return l
	}

	if opts.Bin != "" {
		if _, err := os.Stat(opts.Bin); err == nil {
			l.bin = opts.Bin
		} else {
			slog.Warn("configured browser binary not found", "bin", opts.Bin, "error", err)
		}
		return l
	}
	if path, ok := launcher.LookPath(); ok {
		l.bin = path
	}
	return l
}

func (l *Local) Name() string { return "local" }

func (l *Local) Available() bool { return l.bin != "" }

func (l *Local) connect() (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		return l.browser, nil
	}

	lc := launcher.New().
		Bin(l.bin).
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("hide-scrollbars").
		Set("disable-extensions")

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lc.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	slog.Info("headless browser started", "bin", l.bin)
	l.launcher = lc
	l.browser = browser
	return browser, nil
}

// reset drops a browser that stopped answering so the next call relaunches.
func (l *Local) reset(b *rod.Browser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser != b {
		return
	}
	_ = l.browser.Close()
	l.launcher.Kill()
	l.browser = nil
	l.launcher = nil
}

// Capture renders url in a width x height viewport and returns a JPEG.
func (l *Local) Capture(ctx context.Context, url string, width, height int) ([]byte, error) {
	browser, err := l.connect()
	if err != nil {
		return nil, err
	}

	// The page lives on the browser's own context so it can still be closed
	// after ctx ends; only the work below follows ctx.
	base, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		l.reset(browser)
		return nil, fmt.Errorf("creating page: %w", err)
	}
	defer closePage(base)

	page := base.Context(ctx)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigating: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for load: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(l.settle):
	}

	quality := l.quality
	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing: %w", err)
	}
	return data, nil
}

func closePage(p *rod.Page) {
	if err := p.Timeout(pageCloseTimeout).Close(); err != nil {
		slog.Warn("closing browser page", "error", err)
	}
}

// openPages counts the browser's tabs. Zero when no browser runs.
func (l *Local) openPages() (int, error) {
	l.mu.Lock()
	b := l.browser
	l.mu.Unlock()
	if b == nil {
		return 0, nil
	}
	pages, err := b.Pages()
	return len(pages), err
}

// Close shuts the browser down if it was started.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser == nil {
		return nil
	}
	err := l.browser.Close()
	l.launcher.Kill()
	l.browser = nil
	l.launcher = nil
	return err
}
