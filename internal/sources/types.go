package sources

import (
	"time"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	// ModeSingle fetches one quote page per tracked code.
	ModeSingle Mode = "single"
	// ModeMulti fetches one market overview page listing many pairs.
	ModeMulti Mode = "multi"
)

// Pair is a raw (base, quote, value text) triple found in markup.
type Pair struct {
	Base  string
	Quote string
	Raw   string
}

// Quote is a normalized, positive rate of Code expressed in Comparison.
type Quote struct {
	Code       string
	Comparison string
	Value      decimal.Decimal
}

// Stats counts what an extraction pass saw.
type Stats struct {
	Blocks    int
	Pairs     int
	Discarded int
}

func (s *Stats) add(o Stats) {
	s.Blocks += o.Blocks
	s.Pairs += o.Pairs
	s.Discarded += o.Discarded
}

// Result is the outcome of one collection pass.
type Result struct {
	Mode      Mode
	FetchedAt time.Time
	Quotes    []Quote
	// Successes holds each code that produced at least one quote.
	Successes  []string
	FailedURLs []string
	Stats      Stats
}
