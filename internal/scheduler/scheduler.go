package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fxsnapshot/fxsnapshot/internal/refresh"
)

// ErrBusy is returned when a run is requested while another one is in progress.
var ErrBusy = errors.New("a refresh is already running")

type Runner interface {
	Run(ctx context.Context) (refresh.Report, error)
}

// Scheduler runs the refresh on a cron schedule, one run at a time.
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup

	runMu sync.Mutex
	now   func() time.Time
}

// New parses expr as a standard five-field cron expression (descriptors such as
// "@hourly" work too). Each run is bounded by timeout.
func New(runner Runner, expr string, timeout time.Duration) (*Scheduler, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:   runner,
		schedule: sched,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}, nil
}

func logger() *slog.Logger {
	return slog.Default().With("component", "scheduler")
}

// Next is the first scheduled run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

// Stop ends the loop, cancels a run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
		return
	default:
	}
	close(s.stopCh)
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	for {
		next := s.Next(s.now())
		logger().Info("next refresh scheduled", "at", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-s.stopCh:
			timer.Stop()
			return
		}
		if _, err := s.RunNow(s.ctx); errors.Is(err, ErrBusy) {
			logger().Warn("skipping tick, previous refresh still running")
		}
	}
}

// RunNow runs one refresh synchronously unless one is already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (refresh.Report, error) {
	if !s.runMu.TryLock() {
		return refresh.Report{}, ErrBusy
	}
	defer s.runMu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.runner.Run(ctx)
}

// Trigger starts a refresh in the background and reports whether it was started.
func (s *Scheduler) Trigger() bool {
	if !s.runMu.TryLock() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.runMu.Unlock()
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		_, _ = s.runner.Run(ctx)
	}()
	return true
}
