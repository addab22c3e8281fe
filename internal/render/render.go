package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxsnapshot/fxsnapshot/internal/items"
	"github.com/fxsnapshot/fxsnapshot/internal/rates"
	"github.com/fxsnapshot/fxsnapshot/internal/refresh"
	"github.com/fxsnapshot/fxsnapshot/internal/utils"
)

// MaxChanges caps the number of moved rates listed in a report.
const MaxChanges = 5

type Options struct {
	// Calendar is "gregorian" or "jalali".
	Calendar string
	// QuoteCurrency is stripped from keys when naming codes.
	QuoteCurrency string
}

// RunReport renders a plain-text summary of one refresh for chat delivery.
func RunReport(rep refresh.Report, opts Options) string {
	var b strings.Builder

	dt := utils.FormatDateTime(opts.Calendar, rep.StartedAt)
	if opts.Calendar == "jalali" {
		dt = utils.ToPersianDigits(dt)
	}

	if rep.Err != nil {
		b.WriteString("⚠️ Refresh failed\n")
	} else {
		b.WriteString("✅ Refresh finished\n")
	}
	fmt.Fprintf(&b, "🕒 %s\n", dt)
	fmt.Fprintf(&b, "Run: %s\n", rep.RunID)
	if rep.Mode != "" {
		fmt.Fprintf(&b, "Mode: %s\n", rep.Mode)
	}
	fmt.Fprintf(&b, "Tracked: %d, resolved: %d, records: %d\n", rep.Tracked, rep.Successes, rep.Records)
	if n := len(rep.FailedURLs); n > 0 || rep.Discarded > 0 {
		fmt.Fprintf(&b, "Failed pages: %d, discarded values: %d\n", n, rep.Discarded)
	}
	if !rep.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Took: %s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
	}

	if len(rep.Removed) > 0 {
		fmt.Fprintf(&b, "\nDropped from tracking (%d): %s\n", len(rep.Removed), strings.Join(rep.Removed, ", "))
	}

	if lines := changeLines(rep.Changes, opts.QuoteCurrency); len(lines) > 0 {
		b.WriteString("\nLargest moves:\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	if rep.Err != nil {
		fmt.Fprintf(&b, "\nError: %v\n", rep.Err)
	}
	return strings.TrimSpace(b.String())
}

func changeLines(changes []refresh.Change, quote string) []string {
	if len(changes) > MaxChanges {
		changes = changes[:MaxChanges]
	}
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		code := c.Code
		if quote != "" {
			code = rates.CodeFromKey(code, quote)
		}
		arrow := " ▲"
		if c.Current.LessThan(c.Previous) {
			arrow = " 🔻"
		}
		out = append(out, fmt.Sprintf("%s (%s) %s%s %s%%",
			code,
			items.Name(code),
			utils.FormatDecimal(c.Current, -1),
			arrow,
			c.Pct().StringFixed(2),
		))
	}
	return out
}
