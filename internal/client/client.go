// Package client reads an exported rate snapshot and answers code listings and
// cross-rate lookups. The snapshot location is passed to every call.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/fxsnapshot/fxsnapshot/internal/items"
	"github.com/fxsnapshot/fxsnapshot/internal/rates"
)

// DivisionPrecision is the number of decimal places kept by Rate.
const DivisionPrecision = 16

type Options struct {
	// QuoteCurrency is the suffix stripped from snapshot keys. Defaults to USD.
	QuoteCurrency string
	Timeout       time.Duration
	// CacheTTL keeps fetched documents for repeated lookups. Zero disables caching.
	CacheTTL time.Duration
}

type Client struct {
	http  *resty.Client
	cache *expirable.LRU[string, []rates.Record]
	quote string
}

func New(opts Options) *Client {
	if opts.QuoteCurrency == "" {
		opts.QuoteCurrency = items.PinnedBase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	http := resty.New()
	http.SetTimeout(opts.Timeout)
	http.SetHeader("accept", "application/json")

	c := &Client{http: http, quote: strings.ToUpper(opts.QuoteCurrency)}
	if opts.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []rates.Record](64, nil, opts.CacheTTL)
	}
	return c
}

// ListCodes returns the distinct currency codes in the snapshot at source, sorted.
func (c *Client) ListCodes(ctx context.Context, source string) ([]string, error) {
	recs, err := c.records(ctx, source)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, rec := range recs {
		code := rates.CodeFromKey(rec.Code, c.quote)
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// Rate returns how many units of to one unit of from is worth, computed from the
// values of both codes against the quote currency.
func (c *Client) Rate(ctx context.Context, source, from, to string) (decimal.Decimal, error) {
	values, err := c.Values(ctx, source)
	if err != nil {
		return decimal.Zero, err
	}
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	a, ok := values[from]
	if !ok {
		return decimal.Zero, &LookupError{Kind: NotFound, Source: source, Code: from}
	}
	b, ok := values[to]
	if !ok {
		return decimal.Zero, &LookupError{Kind: NotFound, Source: source, Code: to}
	}
	if !b.IsPositive() {
		return decimal.Zero, &LookupError{Kind: MalformedSource, Source: source, Err: fmt.Errorf("non-positive value for %s", to)}
	}
	return a.DivRound(b, DivisionPrecision), nil
}

// Values maps each code in the snapshot to its value against the quote currency.
func (c *Client) Values(ctx context.Context, source string) (map[string]decimal.Decimal, error) {
	recs, err := c.records(ctx, source)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(recs))
	for _, rec := range recs {
		out[rates.CodeFromKey(rec.Code, c.quote)] = rec.Value
	}
	return out, nil
}

func (c *Client) records(ctx context.Context, source string) ([]rates.Record, error) {
	if source == "" {
		return nil, &LookupError{Kind: SourceUnreachable, Source: source, Err: errors.New("no source given")}
	}
	if c.cache != nil {
		if recs, ok := c.cache.Get(source); ok {
			return recs, nil
		}
	}

	body, err := c.fetch(ctx, source)
	if err != nil {
		return nil, &LookupError{Kind: SourceUnreachable, Source: source, Err: err}
	}
	var recs []rates.Record
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, &LookupError{Kind: MalformedSource, Source: source, Err: err}
	}
	for i, rec := range recs {
		if rec.Code == "" {
			return nil, &LookupError{Kind: MalformedSource, Source: source, Err: fmt.Errorf("record %d has no code", i)}
		}
	}

	if c.cache != nil {
		c.cache.Add(source, recs)
	}
	return recs, nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (c *Client) fetch(ctx context.Context, source string) ([]byte, error) {
	if !isURL(source) {
		return os.ReadFile(strings.TrimPrefix(source, "file://"))
	}
	res, err := c.http.R().
		SetContext(ctx).
		Get(source)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("http status %d", res.StatusCode())
	}
	return res.Body(), nil
}
