// Package app wires configuration, storage, the browser, the pipeline, the
// scheduler and the optional Telegram bot together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxsnapshot/fxsnapshot/internal/bot"
	"github.com/fxsnapshot/fxsnapshot/internal/browser"
	"github.com/fxsnapshot/fxsnapshot/internal/client"
	"github.com/fxsnapshot/fxsnapshot/internal/config"
	"github.com/fxsnapshot/fxsnapshot/internal/db"
	"github.com/fxsnapshot/fxsnapshot/internal/refresh"
	"github.com/fxsnapshot/fxsnapshot/internal/render"
	"github.com/fxsnapshot/fxsnapshot/internal/scheduler"
	"github.com/fxsnapshot/fxsnapshot/internal/server"
	"github.com/fxsnapshot/fxsnapshot/internal/sources"
)

type App struct {
	cfg config.Config
	db  *db.DB

	bot    *bot.Bot
	runner *refresh.Runner
	sched  *scheduler.Scheduler
}

func logger() *slog.Logger {
	return slog.Default().With("component", "app")
}

func New(cfg config.Config) (*App, error) {
	factor := decimal.NewFromInt(1)
	if cfg.Factor != "" {
		f, err := decimal.NewFromString(cfg.Factor)
		if err != nil || !f.IsPositive() {
			return nil, fmt.Errorf("factor must be a positive decimal, got %q", cfg.Factor)
		}
		factor = f
	}
	renderer, err := NewRenderer(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{cfg: cfg, db: database}

	if cfg.Telegram.BotToken != "" {
		b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, render.Options{
			Calendar:      cfg.ReportCalendar,
			QuoteCurrency: cfg.QuoteCurrency,
		}, cfg.Debug)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		b.SetController(a)
		a.bot = b
	} else {
		logger().Info("telegram disabled, no bot token configured")
	}

	manager := sources.NewManager(renderer, sources.Options{
		Mode:             sources.Mode(cfg.Source.Mode),
		QuoteURLTemplate: cfg.Source.QuoteURLTemplate,
		OverviewURL:      cfg.Source.OverviewURL,
		ValueSelector:    cfg.Source.ValueSelector,
		QuoteCurrency:    cfg.QuoteCurrency,
	})

	var notifier refresh.Notifier
	if a.bot != nil {
		notifier = a.bot
	}
	a.runner = refresh.NewRunner(database, manager, config.NewFileCodeList(cfg.TrackedCodesPath), notifier, refresh.Options{
		Pinned:        cfg.PinnedBase,
		QuoteCurrency: cfg.QuoteCurrency,
		Factor:        factor,
		ExportPath:    cfg.ExportPath,
		BackupPath:    cfg.BackupPath,
	})

	a.sched, err = scheduler.New(a.runner, cfg.Schedule, cfg.RunTimeout.Std())
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return a, nil
}

// NewRenderer builds the browser renderer from the source settings.
func NewRenderer(cfg config.Config) (*browser.Renderer, error) {
	wait, err := browser.ParseWaitUntil(cfg.Source.WaitUntil)
	if err != nil {
		return nil, err
	}
	return browser.New(browser.Options{
		WaitUntil:         wait,
		SettleDelay:       cfg.Source.SettleDelay.Std(),
		NavigationTimeout: cfg.Source.NavigationTimeout.Std(),
		Pace:              cfg.Source.Pace.Std(),
		UserAgent:         cfg.Source.UserAgent,
		ExecPath:          cfg.Source.ChromePath,
		Headful:           cfg.Source.Headful,
	}), nil
}

func (a *App) Close() {
	if a.sched != nil {
		a.sched.Stop()
	}
	_ = a.db.Close()
}

// Refresh runs one refresh now.
func (a *App) Refresh(ctx context.Context) (refresh.Report, error) {
	return a.sched.RunNow(ctx)
}

// Run starts the scheduler, the bot and the HTTP endpoint, and blocks until ctx is
// done. With runFirst a refresh starts immediately instead of waiting for the first
// tick.
func (a *App) Run(ctx context.Context, runFirst bool) error {
	a.sched.Start()
	if runFirst {
		a.sched.Trigger()
	}
	if a.bot != nil {
		go func() {
			if err := a.bot.Run(ctx); err != nil {
				logger().Error("bot stopped", "err", err)
			}
		}()
	}

	var err error
	if a.cfg.Server.Addr != "" {
		err = a.Serve(ctx)
	} else {
		<-ctx.Done()
	}
	logger().Info("shutting down")
	a.sched.Stop()
	return err
}

// Serve publishes the exported snapshot on the configured address until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	c := client.New(client.Options{
		QuoteCurrency: a.cfg.QuoteCurrency,
		CacheTTL:      a.cfg.Client.CacheTTL.Std(),
	})
	return server.ListenAndServe(ctx, a.cfg.Server.Addr, server.NewHandler(c, a.cfg.ExportPath))
}

func (a *App) Trigger() bool {
	return a.sched.Trigger()
}

func (a *App) LastRun(ctx context.Context) (db.Run, bool, error) {
	return a.db.LastRun(ctx)
}

func (a *App) LastExport(ctx context.Context) (time.Time, bool, error) {
	return a.db.LastExport(ctx)
}

func (a *App) Backup(ctx context.Context, path string) error {
	return a.db.BackupTo(ctx, path)
}
