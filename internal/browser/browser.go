// Package browser renders JavaScript-heavy career pages in headless Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultPageTimeout = 30 * time.Second
	defaultSettleDelay = 3 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Renderer loads a page, runs script in it and decodes the script's JSON
// result into out.
type Renderer interface {
	Render(ctx context.Context, url, script string, out any) error
}

// Options configures the headless browser.
type Options struct {
	ExecPath    string        // empty: look up a Chrome/Chromium binary
	ProxyURL    string        // e.g. socks5://127.0.0.1:9050
	PageTimeout time.Duration // per page load, including the settle delay
	SettleDelay time.Duration // wait after DOM ready for client-side rendering
	UserAgent   string
}

// ChromeRenderer shares one browser process across all rendered-page
// sources. Each Render call gets its own tab. The browser starts on first
// use and lives until Close.
type ChromeRenderer struct {
	opts   Options
	logger *slog.Logger

	// launch starts a browser process; replaced in tests.
	launch func() (browserCtx context.Context, cancel func(), err error)

	mu         sync.Mutex
	browserCtx context.Context
	cancel     func()
}

// NewChromeRenderer creates a renderer. No browser is started yet.
func NewChromeRenderer(opts Options, logger *slog.Logger) *ChromeRenderer {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	r := &ChromeRenderer{opts: opts, logger: logger}
	r.launch = r.launchChrome
	return r
}

// browser returns the running browser, starting it on first use. A browser
// whose context has ended (crash, OOM kill, lost websocket) is released and
// launched again.
func (r *ChromeRenderer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx != nil {
		if r.browserCtx.Err() == nil {
			return r.browserCtx, nil
		}
		r.logger.Warn("browser exited, relaunching", "error", context.Cause(r.browserCtx))
		r.cancel()
		r.browserCtx, r.cancel = nil, nil
	}

	browserCtx, cancel, err := r.launch()
	if err != nil {
		return nil, err
	}
	r.browserCtx = browserCtx
	r.cancel = cancel
	return browserCtx, nil
}

func (r *ChromeRenderer) launchChrome() (context.Context, func(), error) {
	execPath := r.opts.ExecPath
	if execPath == "" {
		execPath = FindChromeBinary()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.opts.UserAgent),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if r.opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(r.opts.ProxyURL))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, nil, fmt.Errorf("starting browser %q: %w", execPath, err)
	}
	r.logger.Info("browser started", "exec_path", execPath, "proxy", r.opts.ProxyURL != "")

	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}, nil
}

// Render opens url in a new tab, waits for the body and the settle delay,
// then evaluates script. A page timeout is reported as a plain error so
// retry logic treats it like any other network failure.
func (r *ChromeRenderer) Render(ctx context.Context, url, script string, out any) error {
	browserCtx, err := r.browser()
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.opts.PageTimeout)
	defer cancelTimeout()
	// The tab descends from the browser, not from ctx; tie them together.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.opts.SettleDelay),
		chromedp.Evaluate(script, out),
	)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("rendering %s: %w", url, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("rendering %s: timed out after %s", url, r.opts.PageTimeout)
	default:
		return fmt.Errorf("rendering %s: %w", url, err)
	}
}

// Close shuts the browser down. Safe to call when it never started.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx == nil {
		return nil
	}
	r.cancel()
	r.browserCtx, r.cancel = nil, nil
	return nil
}

// FindChromeBinary returns the first Chrome or Chromium binary found via
// $CHROME_BIN, $PATH or well-known install locations, or "" to let chromedp
// use its own lookup.
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var _ Renderer = (*ChromeRenderer)(nil)
