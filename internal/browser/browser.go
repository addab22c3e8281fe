// Package browser renders pages through a headless Chrome driven by chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

type WaitUntil string

const (
	// WaitNetworkIdle waits for the page lifecycle networkIdle event.
	WaitNetworkIdle WaitUntil = "networkidle"
	// WaitContentLoaded waits for the DOM to be ready, then sleeps SettleDelay.
	WaitContentLoaded WaitUntil = "domcontentloaded"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// ErrNoBrowser is returned when a fetch capability is used outside its session.
var ErrNoBrowser = errors.New("browser session closed")

type Options struct {
	WaitUntil         WaitUntil
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
	// Pace is the minimum gap between two navigations of a batch.
	Pace      time.Duration
	UserAgent string
	ExecPath  string
	// Headful shows the browser window, for debugging selectors.
	Headful bool
}

func (o Options) withDefaults() Options {
	if o.WaitUntil == "" {
		o.WaitUntil = WaitNetworkIdle
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 60 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// ParseWaitUntil accepts the navigation policy names used in configuration.
func ParseWaitUntil(s string) (WaitUntil, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "networkidle", "network-idle":
		return WaitNetworkIdle, nil
	case "domcontentloaded", "content-loaded", "load":
		return WaitContentLoaded, nil
	}
	return "", fmt.Errorf("unknown wait policy %q", s)
}

// FetchFunc renders one URL within an open session.
type FetchFunc func(ctx context.Context, url string) (string, error)

type Renderer struct {
	opts    Options
	session func(ctx context.Context, fn func(fetch FetchFunc) error) error
}

func New(opts Options) *Renderer {
	r := &Renderer{opts: opts.withDefaults()}
	r.session = r.Session
	return r
}

func logger() *slog.Logger {
	return slog.Default().With("component", "browser")
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.UserAgent(r.opts.UserAgent))
	if r.opts.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if r.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
	}
	return opts
}

// Session launches one browser with one tab and hands fn a fetch capability bound to
// it. Navigations through the capability are sequential and paced. The browser is
// closed when fn returns, whatever the outcome.
func (r *Renderer) Session(ctx context.Context, fn func(fetch FetchFunc) error) error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	// starts the browser so launch errors surface before the first URL
	if err := chromedp.Run(tabCtx); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.opts.Pace > 0 {
		limiter = rate.NewLimiter(rate.Every(r.opts.Pace), 1)
	}

	var mu sync.Mutex
	closed := false
	fetch := func(ctx context.Context, url string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return "", ErrNoBrowser
		}
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}
		return r.navigate(tabCtx, url)
	}

	err := fn(fetch)

	mu.Lock()
	closed = true
	mu.Unlock()

	if cerr := chromedp.Cancel(tabCtx); cerr != nil && !errors.Is(cerr, context.Canceled) {
		logger().Warn("closing browser", "err", cerr)
	}
	return err
}

// navigate loads url in the session tab and returns the document markup.
func (r *Renderer) navigate(tabCtx context.Context, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(tabCtx, r.opts.NavigationTimeout)
	defer cancel()

	var markup string
	var actions chromedp.Tasks
	switch r.opts.WaitUntil {
	case WaitContentLoaded:
		actions = chromedp.Tasks{
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(r.opts.SettleDelay),
		}
	default:
		actions = chromedp.Tasks{
			navigateNetworkIdle(url),
		}
		if r.opts.SettleDelay > 0 {
			actions = append(actions, chromedp.Sleep(r.opts.SettleDelay))
		}
	}
	actions = append(actions, chromedp.OuterHTML("html", &markup, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(navCtx, actions); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("navigate %s: timeout after %s", url, r.opts.NavigationTimeout)
		}
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	logger().Debug("page rendered", "url", url, "bytes", len(markup), "took", time.Since(start))
	return markup, nil
}

// navigateNetworkIdle navigates and blocks until the document it committed reports
// networkIdle in the frame it was loaded into.
func navigateNetworkIdle(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}

		w := newIdleWatch()
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		chromedp.ListenTarget(listenCtx, w.observe)

		frameID, loaderID, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errors.New(errorText)
		}
		return w.wait(ctx, frameID, loaderID)
	}
}

// idleWatch records networkIdle lifecycle events per loader. Events can arrive
// before Navigate returns the loader they belong to, so they are kept until waited on.
type idleWatch struct {
	mu     sync.Mutex
	idle   map[cdp.LoaderID]cdp.FrameID
	notify chan struct{}
}

func newIdleWatch() *idleWatch {
	return &idleWatch{
		idle:   map[cdp.LoaderID]cdp.FrameID{},
		notify: make(chan struct{}, 1),
	}
}

func (w *idleWatch) observe(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || e.Name != "networkIdle" {
		return
	}
	w.mu.Lock()
	w.idle[e.LoaderID] = e.FrameID
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *idleWatch) reached(frameID cdp.FrameID, loaderID cdp.LoaderID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.idle[loaderID]
	return ok && f == frameID
}

// wait blocks until loaderID reported networkIdle in frameID. An empty loaderID means
// a same-document navigation, which loads nothing new.
func (w *idleWatch) wait(ctx context.Context, frameID cdp.FrameID, loaderID cdp.LoaderID) error {
	if loaderID == "" {
		return nil
	}
	for !w.reached(frameID, loaderID) {
		select {
		case <-w.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Render fetches one URL in a browser of its own.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	var markup string
	err := r.session(ctx, func(fetch FetchFunc) error {
		var err error
		markup, err = fetch(ctx, url)
		return err
	})
	return markup, err
}

// RenderAll fetches urls in order through one browser session. Failed URLs are
// logged and left out of the result; they are not retried.
func (r *Renderer) RenderAll(ctx context.Context, urls []string) map[string]string {
	out := make(map[string]string, len(urls))
	err := r.session(ctx, func(fetch FetchFunc) error {
		return fetchEach(ctx, urls, fetch, out)
	})
	if err != nil {
		logger().Error("batch aborted", "err", err, "rendered", len(out), "planned", len(urls))
	}
	return out
}

// fetchEach runs fetch for every url, storing non-empty markup in out. Per-URL errors
// are isolated; only cancellation of ctx stops the loop.
func fetchEach(ctx context.Context, urls []string, fetch FetchFunc, out map[string]string) error {
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		markup, err := fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger().Warn("fetch failed", "url", u, "n", i+1, "of", len(urls), "err", err)
			continue
		}
		if markup == "" {
			logger().Warn("empty page", "url", u)
			continue
		}
		out[u] = markup
	}
	return nil
}
