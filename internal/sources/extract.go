package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/fxsnapshot/fxsnapshot/internal/rates"
)

// DefaultValueSelector matches the price element of a Google Finance quote page.
const DefaultValueSelector = "div.YMlKec.fxKbKc"

const blockSelector = "li"

// ExtractPairs scans every list block of a market overview page. A block qualifies
// when it has at least four text fragments and its second fragment reads "BASE / QUOTE";
// the third fragment is the value. Blocks whose value is not a positive number are
// counted as discarded.
func ExtractPairs(markup string) ([]Pair, Stats) {
	var stats Stats
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, stats
	}

	var pairs []Pair
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		stats.Blocks++
		p, ok := blockPair(s.Get(0))
		if !ok {
			return
		}
		if !rates.ParseDecimal(p.Raw).IsPositive() {
			stats.Discarded++
			return
		}
		stats.Pairs++
		pairs = append(pairs, p)
	})
	return pairs, stats
}

func blockPair(n *html.Node) (Pair, bool) {
	texts := fragments(n)
	if len(texts) < 4 || !strings.Contains(texts[1], "/") {
		return Pair{}, false
	}
	codes := strings.Split(texts[1], "/")
	if len(codes) != 2 {
		return Pair{}, false
	}
	base := strings.ToUpper(strings.TrimSpace(codes[0]))
	quote := strings.ToUpper(strings.TrimSpace(codes[1]))
	if base == "" || quote == "" {
		return Pair{}, false
	}
	return Pair{Base: base, Quote: quote, Raw: texts[2]}, true
}

// ExtractSingle reads the one value on a page fetched for code. The first element
// matching selector with a positive value wins; otherwise the first list block reading
// "code / quote" is used. The returned pair carries the caller's code and quote.
func ExtractSingle(markup, code, quote, selector string) (Pair, Stats, bool) {
	var stats Stats
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Pair{}, stats, false
	}
	if selector == "" {
		selector = DefaultValueSelector
	}

	var found Pair
	ok := false
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		stats.Blocks++
		raw := nodeText(s.Get(0))
		if !rates.ParseDecimal(raw).IsPositive() {
			stats.Discarded++
			return true
		}
		found = Pair{Base: code, Quote: quote, Raw: raw}
		ok = true
		return false
	})
	if ok {
		stats.Pairs++
		return found, stats, true
	}

	doc.Find(blockSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		p, qualifies := blockPair(s.Get(0))
		if !qualifies || p.Base != code || p.Quote != quote {
			return true
		}
		stats.Blocks++
		if !rates.ParseDecimal(p.Raw).IsPositive() {
			stats.Discarded++
			return true
		}
		found = Pair{Base: code, Quote: quote, Raw: p.Raw}
		ok = true
		return false
	})
	if ok {
		stats.Pairs++
	}
	return found, stats, ok
}
