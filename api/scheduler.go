/*
scheduler.go - Automated monthly payroll runs

PURPOSE:
  Periodically checks whether last month's payroll has been run and, if
  not, runs it for every employee.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The target period is always the month before "now"
  - Skips periods that already have a completed run
  - Each run is recorded in payroll_runs for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll.go: RunPayroll (also behind POST /api/payroll/runs)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/payroll-engine/engine"
)

// PayrollScheduler runs the previous month's payroll once it has closed.
type PayrollScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a new scheduler.
func NewPayrollScheduler(handler *Handler) *PayrollScheduler {
	return &PayrollScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	logger := ps.Handler.Logger.With(slog.String("component", "scheduler"))
	if !ps.Enabled {
		logger.Info("disabled, not starting")
		return
	}

	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run(ps.ticker, ps.stop)

	logger.Info("started", slog.Duration("check_interval", ps.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.Handler.Logger.Info("stopped", slog.String("component", "scheduler"))
	}
}

func (ps *PayrollScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess()

	for {
		select {
		case <-ticker.C:
			ps.checkAndProcess()
		case <-stop:
			return
		}
	}
}

// checkAndProcess runs last month's payroll unless a completed run exists.
// It reports whether a run was started.
func (ps *PayrollScheduler) checkAndProcess() bool {
	ctx := context.Background()
	logger := ps.Handler.Logger.With(slog.String("component", "scheduler"))
	period := ps.NextPeriod()

	done, err := ps.Handler.Store.IsRunComplete(ctx, period)
	if err != nil {
		logger.Error("checking run status", slog.String("period", period.String()), slog.Any("error", err))
		return false
	}
	if done {
		logger.Debug("period already run", slog.String("period", period.String()))
		return false
	}

	run, items, err := ps.Handler.RunPayroll(ctx, period)
	if err != nil {
		logger.Error("payroll run failed", slog.String("period", period.String()), slog.Any("error", err))
		return true
	}
	if run.Failed > 0 {
		logger.Warn("payroll run had failures",
			slog.String("period", period.String()),
			slog.String("employees", summarizeFailures(items)),
		)
	}
	return true
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PayrollScheduler) RunNow() bool {
	return ps.checkAndProcess()
}

// NextPeriod is the period the next check will target: the month before
// the current one.
func (ps *PayrollScheduler) NextPeriod() engine.PayPeriod {
	now := time.Now
	if ps.Now != nil {
		now = ps.Now
	}
	return engine.PeriodOf(now().UTC()).Previous()
}
