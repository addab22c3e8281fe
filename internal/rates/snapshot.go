package rates

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Builder collects the records of one run. Later writes for a code replace earlier ones.
type Builder struct {
	identity string
	base     string
	factor   decimal.Decimal
	now      func() time.Time

	records map[string]Record
}

// NewBuilder returns a builder whose snapshot always carries an identity record keyed
// identity, worth one unit of base. Every value is multiplied by factor to get its
// computed value; a zero factor means no correction.
func NewBuilder(identity, base string, factor decimal.Decimal) *Builder {
	if factor.IsZero() {
		factor = decimal.NewFromInt(1)
	}
	return &Builder{
		identity: identity,
		base:     base,
		factor:   factor,
		now:      time.Now,
		records:  map[string]Record{},
	}
}

// Add stores a record for code and reports whether it was accepted.
// Non-positive values and the identity code are rejected.
func (b *Builder) Add(code, comparison string, value decimal.Decimal) bool {
	if code == b.identity {
		return false
	}
	rec := Record{
		Code:           code,
		ComparisonCode: comparison,
		Value:          value,
		ComputedValue:  value.Mul(b.factor),
		UpdatedAt:      b.now().UTC(),
	}
	if !rec.Valid() {
		return false
	}
	b.records[code] = rec
	return true
}

// Len is the number of accepted records, excluding the identity record.
func (b *Builder) Len() int { return len(b.records) }

// Records returns the snapshot sorted by code, identity record included.
func (b *Builder) Records() []Record {
	one := decimal.NewFromInt(1)
	out := make([]Record, 0, len(b.records)+1)
	for _, rec := range b.records {
		out = append(out, rec)
	}
	out = append(out, Record{
		Code:           b.identity,
		ComparisonCode: b.base,
		Value:          one,
		ComputedValue:  one,
		UpdatedAt:      b.now().UTC(),
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
