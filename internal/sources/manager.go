package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/fxsnapshot/fxsnapshot/internal/rates"
)

// CodePlaceholder is replaced by the currency code in QuoteURLTemplate.
const CodePlaceholder = "{code}"

// Fetcher renders pages. Missing keys in the returned map are failed URLs.
type Fetcher interface {
	RenderAll(ctx context.Context, urls []string) map[string]string
}

type Options struct {
	Mode Mode
	// QuoteURLTemplate is used in single mode, e.g.
	// "https://www.google.com/finance/quote/{code}-USD?hl=es".
	QuoteURLTemplate string
	// OverviewURL is used in multi mode.
	OverviewURL   string
	ValueSelector string
	// QuoteCurrency is the currency every published value is expressed in.
	QuoteCurrency string
}

// Manager turns a tracked code list into normalized quotes.
type Manager struct {
	fetcher Fetcher
	opts    Options
}

func NewManager(fetcher Fetcher, opts Options) *Manager {
	if opts.Mode == "" {
		opts.Mode = ModeSingle
	}
	if opts.ValueSelector == "" {
		opts.ValueSelector = DefaultValueSelector
	}
	return &Manager{fetcher: fetcher, opts: opts}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "sources")
}

// QuoteURL builds the single mode page URL for code.
func QuoteURL(template, code string) string {
	return strings.ReplaceAll(template, CodePlaceholder, url.PathEscape(code))
}

// Collect fetches and extracts quotes for codes. The pinned code is never fetched.
// Fetch and parse failures only shrink the result; an error is returned only when
// ctx ends before collection finished.
func (m *Manager) Collect(ctx context.Context, codes []string, pinned string) (Result, error) {
	tracked := make([]string, 0, len(codes))
	seen := map[string]bool{pinned: true}
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		tracked = append(tracked, c)
	}

	var res Result
	switch m.opts.Mode {
	case ModeSingle:
		res = m.collectSingle(ctx, tracked)
	case ModeMulti:
		res = m.collectMulti(ctx, tracked)
	default:
		return Result{}, fmt.Errorf("unsupported source mode: %s", m.opts.Mode)
	}
	res.Mode = m.opts.Mode
	res.FetchedAt = time.Now()

	logger().Info("collection finished",
		"mode", res.Mode,
		"tracked", len(tracked),
		"quotes", len(res.Quotes),
		"failed_urls", len(res.FailedURLs),
		"discarded", res.Stats.Discarded,
	)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (m *Manager) collectSingle(ctx context.Context, codes []string) Result {
	if m.opts.QuoteURLTemplate == "" {
		logger().Error("single mode requires a quote url template")
		return Result{}
	}

	urls := make([]string, 0, len(codes))
	codeByURL := make(map[string]string, len(codes))
	for _, c := range codes {
		u := QuoteURL(m.opts.QuoteURLTemplate, c)
		urls = append(urls, u)
		codeByURL[u] = c
	}

	pages := m.fetcher.RenderAll(ctx, urls)

	var res Result
	for _, u := range urls {
		code := codeByURL[u]
		markup, ok := pages[u]
		if !ok || markup == "" {
			res.FailedURLs = append(res.FailedURLs, u)
			continue
		}
		pair, stats, ok := ExtractSingle(markup, code, m.opts.QuoteCurrency, m.opts.ValueSelector)
		res.Stats.add(stats)
		if !ok {
			logger().Warn("no value on page", "code", code, "url", u)
			continue
		}
		res.Quotes = append(res.Quotes, Quote{
			Code:       code,
			Comparison: m.opts.QuoteCurrency,
			Value:      rates.ParseDecimal(pair.Raw),
		})
		res.Successes = append(res.Successes, code)
	}
	return res
}

func (m *Manager) collectMulti(ctx context.Context, codes []string) Result {
	if m.opts.OverviewURL == "" {
		logger().Error("multi mode requires an overview url")
		return Result{}
	}

	if len(codes) == 0 {
		logger().Warn("no codes to collect besides the pinned base, skipping overview")
		return Result{}
	}

	var res Result
	pages := m.fetcher.RenderAll(ctx, []string{m.opts.OverviewURL})
	markup, ok := pages[m.opts.OverviewURL]
	if !ok || markup == "" {
		res.FailedURLs = append(res.FailedURLs, m.opts.OverviewURL)
		return res
	}

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}

	pairs, stats := ExtractPairs(markup)
	res.Stats = stats
	succeeded := map[string]bool{}
	for _, p := range pairs {
		if p.Quote != m.opts.QuoteCurrency {
			logger().Debug("skipping pair in other quote currency", "base", p.Base, "quote", p.Quote)
			continue
		}
		if !wanted[p.Base] {
			continue
		}
		res.Quotes = append(res.Quotes, Quote{
			Code:       p.Base,
			Comparison: p.Quote,
			Value:      rates.ParseDecimal(p.Raw),
		})
		if !succeeded[p.Base] {
			succeeded[p.Base] = true
			res.Successes = append(res.Successes, p.Base)
		}
	}
	return res
}
