// Package curator prunes the tracked code list down to the codes that resolved in
// the latest run.
package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/fxsnapshot/fxsnapshot/internal/config"
	"github.com/fxsnapshot/fxsnapshot/internal/items"
)

// Curate returns the next tracked list, successes plus pinned, sorted and
// deduplicated, together with the previously tracked codes that were dropped.
func Curate(previous, successes []string, pinned string) (next, removed []string) {
	pinned = strings.ToUpper(strings.TrimSpace(pinned))
	next = config.NormalizeCodes(append(slices.Clone(successes), pinned))

	keep := make(map[string]bool, len(next))
	for _, c := range next {
		keep[c] = true
	}
	for _, c := range config.NormalizeCodes(previous) {
		if !keep[c] {
			removed = append(removed, c)
		}
	}
	return next, removed
}

type Curator struct {
	codes  config.CodeList
	pinned string
}

func New(codes config.CodeList, pinned string) *Curator {
	return &Curator{codes: codes, pinned: pinned}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "curator")
}

// Apply rewrites the tracked list from this run's successes and returns the removed
// codes. The list is saved only when it changed. Without a saved list the built-in
// defaults count as the previous list.
func (c *Curator) Apply(ctx context.Context, successes []string) ([]string, error) {
	previous, err := c.codes.Load(ctx)
	if errors.Is(err, config.ErrNoCodeList) {
		previous = items.DefaultCodes
	} else if err != nil {
		return nil, fmt.Errorf("load tracked codes: %w", err)
	}

	next, removed := Curate(previous, successes, c.pinned)
	if slices.Equal(next, config.NormalizeCodes(previous)) {
		logger().Info("tracked codes unchanged", "count", len(next))
		return nil, nil
	}
	if len(removed) > 0 {
		logger().Warn("dropping codes with no data", "count", len(removed), "codes", removed)
	}
	if err := c.codes.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save tracked codes: %w", err)
	}
	logger().Info("tracked codes updated", "count", len(next))
	return removed, nil
}
