// Package refresh runs one end-to-end snapshot refresh: collect, build, store,
// export, then prune the tracked code list.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fxsnapshot/fxsnapshot/internal/config"
	"github.com/fxsnapshot/fxsnapshot/internal/curator"
	"github.com/fxsnapshot/fxsnapshot/internal/db"
	"github.com/fxsnapshot/fxsnapshot/internal/items"
	"github.com/fxsnapshot/fxsnapshot/internal/rates"
	"github.com/fxsnapshot/fxsnapshot/internal/sources"
)

// ErrNoRecords aborts a run that extracted nothing. The stored snapshot and the
// exported document are left untouched.
var ErrNoRecords = errors.New("no records extracted")

// Collector produces quotes for the tracked codes.
type Collector interface {
	Collect(ctx context.Context, codes []string, pinned string) (sources.Result, error)
}

// Notifier receives the report of every run, failed ones included.
type Notifier interface {
	NotifyRun(ctx context.Context, rep Report)
}

// Change is a stored value that moved since the previous snapshot.
type Change struct {
	Code     string
	Previous decimal.Decimal
	Current  decimal.Decimal
}

// Pct is the relative move in percent.
func (c Change) Pct() decimal.Decimal {
	if c.Previous.IsZero() {
		return decimal.Zero
	}
	return c.Current.Sub(c.Previous).Div(c.Previous).Mul(decimal.NewFromInt(100))
}

type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       sources.Mode

	Tracked    int
	Successes  int
	Records    int
	Exported   int
	FailedURLs []string
	Discarded  int
	Removed    []string
	Changes    []Change

	Err error
}

type Options struct {
	Pinned        string
	QuoteCurrency string
	Factor        decimal.Decimal
	ExportPath    string
	// BackupPath, when set, receives a copy of the store before it is replaced.
	BackupPath string
}

type Runner struct {
	store     *db.DB
	collector Collector
	codes     config.CodeList
	curator   *curator.Curator
	notifier  Notifier
	opts      Options
	now       func() time.Time
}

func NewRunner(store *db.DB, collector Collector, codes config.CodeList, notifier Notifier, opts Options) *Runner {
	if opts.Pinned == "" {
		opts.Pinned = items.PinnedBase
	}
	if opts.QuoteCurrency == "" {
		opts.QuoteCurrency = opts.Pinned
	}
	return &Runner{
		store:     store,
		collector: collector,
		codes:     codes,
		curator:   curator.New(codes, opts.Pinned),
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
	}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "refresh")
}

// Run performs one refresh. The returned report is filled as far as the run got,
// even when an error is returned.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString(), StartedAt: r.now()}
	log := logger().With("run_id", rep.RunID)
	log.Info("refresh started")

	err := r.run(ctx, log, &rep)
	rep.FinishedAt = r.now()
	rep.Err = err

	// bookkeeping survives cancellation of the run itself
	bg := context.WithoutCancel(ctx)
	if rerr := r.store.RecordRun(bg, runRow(rep)); rerr != nil {
		log.Error("record run", "err", rerr)
	}
	if err != nil {
		log.Error("refresh failed", "err", err, "took", rep.FinishedAt.Sub(rep.StartedAt))
	} else {
		log.Info("refresh finished",
			"records", rep.Records,
			"failed_urls", len(rep.FailedURLs),
			"removed", len(rep.Removed),
			"took", rep.FinishedAt.Sub(rep.StartedAt),
		)
	}
	if r.notifier != nil {
		r.notifier.NotifyRun(bg, rep)
	}
	return rep, err
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, rep *Report) error {
	codes, err := r.codes.Load(ctx)
	if errors.Is(err, config.ErrNoCodeList) {
		log.Info("no tracked code list yet, seeding from defaults", "count", len(items.DefaultCodes))
		codes = items.DefaultCodes
	} else if err != nil {
		return fmt.Errorf("load tracked codes: %w", err)
	}
	rep.Tracked = len(codes)

	res, err := r.collector.Collect(ctx, codes, r.opts.Pinned)
	rep.Mode = res.Mode
	rep.FailedURLs = res.FailedURLs
	rep.Discarded = res.Stats.Discarded
	rep.Successes = len(res.Successes)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	quote := r.opts.QuoteCurrency
	b := rates.NewBuilder(rates.Key(quote, quote), quote, r.opts.Factor)
	for _, q := range res.Quotes {
		if !b.Add(rates.Key(q.Code, q.Comparison), q.Comparison, q.Value) {
			rep.Discarded++
		}
	}
	if b.Len() == 0 {
		return ErrNoRecords
	}
	recs := b.Records()
	rep.Records = b.Len()

	if prev, err := r.store.Values(ctx, nil); err != nil {
		log.Warn("reading previous snapshot", "err", err)
	} else {
		rep.Changes = diff(prev, recs)
	}

	if r.opts.BackupPath != "" {
		if err := r.store.BackupTo(ctx, r.opts.BackupPath); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	if err := r.store.Replace(ctx, recs); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	n, err := r.store.ExportJSON(ctx, r.opts.ExportPath)
	if err != nil {
		return err
	}
	rep.Exported = n
	if err := r.store.SetLastExport(ctx, r.now()); err != nil {
		log.Warn("set meta", "err", err)
	}
	log.Info("snapshot exported", "path", r.opts.ExportPath, "records", n)

	removed, err := r.curator.Apply(ctx, res.Successes)
	if err != nil {
		return err
	}
	rep.Removed = removed
	return nil
}

// diff lists records whose value differs from the previous snapshot, largest
// relative move first.
func diff(prev map[string]decimal.Decimal, recs []rates.Record) []Change {
	var out []Change
	for _, rec := range recs {
		old, ok := prev[rec.Code]
		if !ok || old.Equal(rec.Value) {
			continue
		}
		out = append(out, Change{Code: rec.Code, Previous: old, Current: rec.Value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pct().Abs().GreaterThan(out[j].Pct().Abs())
	})
	return out
}

func runRow(rep Report) db.Run {
	row := db.Run{
		ID:           rep.RunID,
		StartedAt:    rep.StartedAt,
		FinishedAt:   rep.FinishedAt,
		Records:      rep.Records,
		FailedURLs:   len(rep.FailedURLs),
		Discarded:    rep.Discarded,
		RemovedCodes: rep.Removed,
	}
	if rep.Err != nil {
		row.Error = rep.Err.Error()
	}
	return row
}
