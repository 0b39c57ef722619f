/*
engine.go - Orchestration of directory, ledger, sales feed and calculator

REQUEST FLOW (ComputeCommission):
  1. Look up the therapist profile (ErrMissingProfile if absent)
  2. Sum ledger hours for the window
  3. Ask the revenue lookup for the window's revenue
  4. Hand (profile, hours, revenue) to the calculator

The engine holds handles to its collaborators; it keeps no state of its
own beyond them, so one Engine serves concurrent requests.
*/
package payroll

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Commission is a computed breakdown for one therapist over one window.
type Commission struct {
	TherapistID TherapistID
	Name        string
	Window      Window
	Breakdown   Breakdown
}

type Engine struct {
	Directory  Directory
	Ledger     HoursLedger
	Revenue    RevenueLookup
	Sales      SaleStore
	Calculator *Calculator

	// Workers bounds the fan-out of Run. Zero or less means 4.
	Workers int
	Log     *log.Entry
}

// NewEngine wires every collaborator to the same store.
func NewEngine(store Store, calc *Calculator) *Engine {
	if calc == nil {
		calc = NewCalculator(DefaultRates())
	}
	return &Engine{
		Directory:  store,
		Ledger:     NewLedger(store),
		Revenue:    store,
		Sales:      store,
		Calculator: calc,
		Workers:    4,
		Log:        log.WithField("component", "payroll"),
	}
}

// =============================================================================
// HOURS
// =============================================================================

// AddHoursEntry records hours for a known therapist.
func (e *Engine) AddHoursEntry(ctx context.Context, therapistID TherapistID, date time.Time, hours decimal.Decimal) (HoursEntry, error) {
	if !hours.IsPositive() {
		return HoursEntry{}, &InvalidHoursError{Raw: hours.String()}
	}
	if _, err := e.Directory.Profile(ctx, therapistID); err != nil {
		return HoursEntry{}, err
	}
	entry, err := e.Ledger.AddEntry(ctx, therapistID, date, hours)
	if err != nil {
		return HoursEntry{}, err
	}
	e.Log.WithFields(log.Fields{
		"therapist_id": therapistID,
		"date":         entry.Date.Format(DateLayout),
		"hours":        hours.String(),
	}).Debug("hours entry added")
	return entry, nil
}

// =============================================================================
// COMMISSION
// =============================================================================

func (e *Engine) ComputeCommission(ctx context.Context, therapistID TherapistID, start, end time.Time) (Commission, error) {
	window := Window{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return Commission{}, err
	}

	profile, err := e.Directory.Profile(ctx, therapistID)
	if err != nil {
		return Commission{}, err
	}
	if !profile.EmploymentType.Valid() {
		return Commission{}, &InvalidProfileError{Field: "employment_type", Reason: fmt.Sprintf("unknown employment type for %s", therapistID)}
	}

	hours, err := e.Ledger.TotalHours(ctx, therapistID, start, end)
	if err != nil {
		return Commission{}, fmt.Errorf("failed to total hours for %s: %w", therapistID, err)
	}

	revenue, err := e.Revenue.RevenueFor(ctx, therapistID, start, end)
	if err != nil {
		return Commission{}, fmt.Errorf("failed to look up revenue for %s: %w", therapistID, err)
	}

	return Commission{
		TherapistID: profile.ID,
		Name:        profile.Name,
		Window:      window,
		Breakdown:   e.Calculator.Compute(profile, hours, revenue),
	}, nil
}

// CommissionFor computes over the day/week/month/year window containing ref.
func (e *Engine) CommissionFor(ctx context.Context, therapistID TherapistID, kind PeriodKind, ref time.Time) (Commission, error) {
	w := WindowFor(kind, ref)
	return e.ComputeCommission(ctx, therapistID, w.Start, w.End)
}

// =============================================================================
// PAYROLL RUN - Every therapist for one window
// =============================================================================

// PayrollLine carries either a commission or the error that stopped it.
type PayrollLine struct {
	Commission Commission
	Err        error
}

type PayrollRun struct {
	Window              Window
	Lines               []PayrollLine
	TotalRevenue        decimal.Decimal
	TotalTherapistShare decimal.Decimal
	TotalSalonShare     decimal.Decimal
	Failed              int
}

// Run computes every listed therapist's commission for the window. One
// therapist's failure is recorded on its line and does not stop the rest;
// only a failure to list therapists or a cancelled context fails the run.
func (e *Engine) Run(ctx context.Context, window Window) (PayrollRun, error) {
	if err := window.Validate(); err != nil {
		return PayrollRun{}, err
	}
	profiles, err := e.Directory.ListProfiles(ctx)
	if err != nil {
		return PayrollRun{}, fmt.Errorf("failed to list therapists: %w", err)
	}

	workers := e.Workers
	if workers <= 0 {
		workers = 4
	}

	lines := make([]PayrollLine, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range profiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := e.ComputeCommission(gctx, p.ID, window.Start, window.End)
			if err != nil {
				c = Commission{TherapistID: p.ID, Name: p.Name, Window: window}
			}
			lines[i] = PayrollLine{Commission: c, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PayrollRun{}, err
	}

	run := PayrollRun{
		Window:              window,
		Lines:               lines,
		TotalRevenue:        decimal.Zero,
		TotalTherapistShare: decimal.Zero,
		TotalSalonShare:     decimal.Zero,
	}
	for _, line := range lines {
		if line.Err != nil {
			run.Failed++
			e.Log.WithFields(log.Fields{
				"therapist_id": line.Commission.TherapistID,
				"window":       window.String(),
			}).WithError(line.Err).Warn("payroll line failed")
			continue
		}
		b := line.Commission.Breakdown
		run.TotalRevenue = run.TotalRevenue.Add(b.Revenue)
		run.TotalTherapistShare = run.TotalTherapistShare.Add(b.TherapistShare)
		run.TotalSalonShare = run.TotalSalonShare.Add(b.SalonShare)
	}
	sort.SliceStable(run.Lines, func(i, j int) bool {
		return run.Lines[i].Commission.Name < run.Lines[j].Commission.Name
	})
	return run, nil
}

// =============================================================================
// SALES
// =============================================================================

// RecordSale validates a sale and appends it to the feed. A missing ID is
// generated.
func (e *Engine) RecordSale(ctx context.Context, sale Sale) (Sale, error) {
	if sale.ID == "" {
		sale.ID = SaleID(uuid.NewString())
	}
	if err := sale.Validate(); err != nil {
		return Sale{}, err
	}
	if err := e.Sales.AppendSale(ctx, sale); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// RevenueSummary totals item revenue of every sale in the window.
func (e *Engine) RevenueSummary(ctx context.Context, window Window) (decimal.Decimal, error) {
	if err := window.Validate(); err != nil {
		return decimal.Zero, err
	}
	return e.Sales.TotalRevenue(ctx, window.Start, window.End)
}

// RevenueBreakdown groups the window's item revenue by therapist, customer
// or service. Lines are ordered by amount, highest first.
func (e *Engine) RevenueBreakdown(ctx context.Context, window Window, group ReportGroup) (RevenueBreakdown, error) {
	if err := window.Validate(); err != nil {
		return RevenueBreakdown{}, err
	}
	if _, err := ParseReportGroup(string(group)); err != nil {
		return RevenueBreakdown{}, err
	}

	lines, err := e.Sales.RevenueByGroup(ctx, group, window.Start, window.End)
	if err != nil {
		return RevenueBreakdown{}, fmt.Errorf("failed to group revenue by %s: %w", group, err)
	}

	report := RevenueBreakdown{Window: window, Group: group, Lines: lines, Amount: decimal.Zero}
	for i := range report.Lines {
		line := &report.Lines[i]
		if err := e.labelGroup(ctx, group, line); err != nil {
			return RevenueBreakdown{}, err
		}
		report.Amount = report.Amount.Add(line.Amount)
		report.Count += line.Count
	}
	sortGroupTotals(report.Lines)
	return report, nil
}

// labelGroup fills labels the sales feed did not carry.
func (e *Engine) labelGroup(ctx context.Context, group ReportGroup, line *RevenueGroupTotal) error {
	if line.Label != "" {
		return nil
	}
	switch {
	case group == GroupCustomer && line.Key == "":
		line.Label = UnknownCustomer
	case group == GroupTherapist:
		p, err := e.Directory.Profile(ctx, TherapistID(line.Key))
		switch {
		case err == nil:
			line.Label = p.Name
		case IsNotFound(err):
			line.Label = line.Key
		default:
			return fmt.Errorf("failed to label therapist %s: %w", line.Key, err)
		}
	default:
		line.Label = line.Key
	}
	return nil
}
