package rates

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal converts scraped numeric text of unknown locale into an exact decimal.
// US ("1,234.56") and European ("1.234,56") grouping both yield 1234.56.
// Anything that cannot be read as a number yields zero, which callers treat as invalid.
func ParseDecimal(raw string) decimal.Decimal {
	cleaned := keepNumeric(raw)
	if cleaned == "" {
		return decimal.Zero
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')

	switch {
	case lastComma >= 0 && lastDot < 0:
		if strings.Count(cleaned, ",") > 1 {
			// "1,234,567": only grouping can repeat
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case lastComma >= 0 && lastDot >= 0:
		if lastComma < lastDot {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		slog.Debug("unparseable decimal", "component", "rates", "raw", raw, "cleaned", cleaned, "err", err)
		return decimal.Zero
	}
	return d
}

func keepNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
