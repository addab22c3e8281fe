package rates

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one published rate: Value units of ComparisonCode per unit of Code.
// The JSON form is the exported document schema; decimals encode as strings.
type Record struct {
	Code           string          `json:"code"`
	Value          decimal.Decimal `json:"value"`
	ComparisonCode string          `json:"comparison_code"`
	ComputedValue  decimal.Decimal `json:"computed_value"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Valid reports whether the record can be published.
func (r Record) Valid() bool {
	return r.Code != "" && r.Value.IsPositive()
}

// Key is the snapshot key for code quoted against quote, e.g. "EUR-USD".
func Key(code, quote string) string {
	return code + "-" + quote
}

// CodeFromKey strips the quote suffix from a snapshot key. Keys without the suffix
// are returned unchanged.
func CodeFromKey(key, quote string) string {
	return strings.TrimSuffix(key, "-"+quote)
}
