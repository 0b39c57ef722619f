/*
scheduler.go - Month-end payroll scheduler

PURPOSE:
  Periodically checks whether a calendar month has closed and, once per
  closed month, runs payroll for every therapist. The latest run is kept
  in memory and served by GET /api/reports/payroll/latest.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Targets the month before the one containing "now"
  - Skips a month it has already run successfully
  - A run with failed lines is kept but retried on the next tick

USAGE:
  scheduler := NewPayrollScheduler(engine, metrics)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: PayrollReport endpoint (on-demand runs)
  - payroll/engine.go: Engine.Run
*/
package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/salon-engine/payroll"
)

// PayrollScheduler runs month-end payroll automatically.
type PayrollScheduler struct {
	Engine        *payroll.Engine
	Metrics       *Metrics
	CheckInterval time.Duration
	Now           func() time.Time

	mu        sync.Mutex
	latest    *payroll.PayrollRun
	latestAt  time.Time
	completed map[string]bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewPayrollScheduler creates a scheduler that checks hourly.
func NewPayrollScheduler(engine *payroll.Engine, metrics *Metrics) *PayrollScheduler {
	return &PayrollScheduler{
		Engine:        engine,
		Metrics:       metrics,
		CheckInterval: time.Hour,
		Now:           time.Now,
		completed:     make(map[string]bool),
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		return
	}
	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)
	go ps.run()

	log.WithField("interval", ps.CheckInterval.String()).Info("payroll scheduler started")
}

// Stop halts the scheduler and waits for an in-flight run.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	if ps.ticker == nil {
		ps.mu.Unlock()
		return
	}
	ps.ticker.Stop()
	close(ps.stop)
	ps.ticker = nil
	ps.mu.Unlock()

	ps.wg.Wait()
	log.Info("payroll scheduler stopped")
}

func (ps *PayrollScheduler) run() {
	defer ps.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-ps.stop
		cancel()
	}()

	ps.RunNow(ctx)

	ps.mu.Lock()
	ticker := ps.ticker
	ps.mu.Unlock()
	if ticker == nil {
		return
	}
	for {
		select {
		case <-ticker.C:
			ps.RunNow(ctx)
		case <-ps.stop:
			return
		}
	}
}

// RunNow runs payroll for the last closed month unless already done.
// It reports whether a run happened.
func (ps *PayrollScheduler) RunNow(ctx context.Context) bool {
	window := ClosedMonth(ps.Now())
	key := window.String()

	ps.mu.Lock()
	done := ps.completed[key]
	ps.mu.Unlock()
	if done {
		return false
	}

	logger := log.WithField("window", key)
	run, err := ps.Engine.Run(ctx, window)
	if err != nil {
		ps.count("error")
		logger.WithError(err).Error("scheduled payroll run failed")
		return false
	}

	ps.mu.Lock()
	ps.latest = &run
	ps.latestAt = ps.Now()
	if run.Failed == 0 {
		ps.completed[key] = true
	}
	ps.mu.Unlock()

	ps.count(outcome(run))
	logger.WithFields(log.Fields{
		"therapists":      len(run.Lines),
		"failed":          run.Failed,
		"total_revenue":   run.TotalRevenue.StringFixed(2),
		"therapist_share": run.TotalTherapistShare.StringFixed(2),
	}).Info("scheduled payroll run complete")
	return true
}

// Latest returns the most recent run and when it was produced.
func (ps *PayrollScheduler) Latest() (payroll.PayrollRun, time.Time, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.latest == nil {
		return payroll.PayrollRun{}, time.Time{}, false
	}
	return *ps.latest, ps.latestAt, true
}

func (ps *PayrollScheduler) count(result string) {
	if ps.Metrics != nil {
		ps.Metrics.payrollRuns.WithLabelValues("scheduler", result).Inc()
	}
}

// ClosedMonth is the month window before the one containing now.
func ClosedMonth(now time.Time) payroll.Window {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return payroll.WindowFor(payroll.PeriodMonth, firstOfMonth.AddDate(0, 0, -1))
}
