/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the store with realistic salon data: therapists, hours and
  sales, all dated in the current month so the default commission window
  shows them straight away.

AVAILABLE SCENARIOS:
  month-end:        Employed and self-employed therapists, typical month
  loss-month:       Labour costs above revenue, commission clamps to zero
  split-shifts:     Several entries on the same day, all counted

HOW SCENARIOS WORK:
  1. Reset the store (clear all data)
  2. Save therapist profiles
  3. Add hours entries through the engine
  4. Record sales through the engine

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "month-end"}

NOTE:
  Scenarios reset the store. The routes are only mounted outside
  production.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/warp/salon-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "month-end",
		Name:        "Month End",
		Description: "Employed therapist on £12/hr with 160 hours and £3000 takings, plus a self-employed therapist on a 40/60 split",
	},
	{
		ID:          "loss-month",
		Name:        "Loss Month",
		Description: "Wage, holiday pay and NIC exceed revenue; commission is zero and the salon absorbs the loss",
	},
	{
		ID:          "split-shifts",
		Name:        "Split Shifts",
		Description: "Morning and evening entries logged separately on the same days",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body", err)
		return
	}

	var loader func(context.Context, time.Time) error
	switch req.ScenarioID {
	case "month-end":
		loader = h.loadMonthEndScenario
	case "loss-month":
		loader = h.loadLossMonthScenario
	case "split-shifts":
		loader = h.loadSplitShiftsScenario
	default:
		h.badRequest(w, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}

	monthStart := payroll.WindowFor(payroll.PeriodMonth, payroll.Date(h.Now())).Start
	if err := loader(ctx, monthStart); err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	log.WithField("scenario", req.ScenarioID).Info("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetData clears the store.
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(Resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Store)
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthEndScenario(ctx context.Context, month time.Time) error {
	if err := h.saveProfiles(ctx,
		profileSeed{"th-amy", "Amy Clarke", payroll.Employed, "12"},
		profileSeed{"th-beth", "Beth Osei", payroll.SelfEmployed, "0"},
	); err != nil {
		return err
	}

	// 20 eight-hour days.
	for day := 0; day < 20; day++ {
		if _, err := h.Engine.AddHoursEntry(ctx, "th-amy", month.AddDate(0, 0, day), decimal.NewFromInt(8)); err != nil {
			return err
		}
	}

	sales := []saleSeed{
		{"th-amy", 2, "Deep tissue massage", "75", 10, "0"},
		{"th-amy", 9, "Hot stone massage", "90", 10, "0"},
		{"th-amy", 16, "Facial", "60", 10, "0"},
		{"th-amy", 18, "Gift voucher", "75", 10, "0"},
		{"th-beth", 5, "Gel manicure", "35", 10, "0"},
		{"th-beth", 12, "Pedicure", "40", 10, "50"},
		{"th-beth", 20, "Lash lift", "55", 10, "0"},
	}
	return h.recordSales(ctx, month, sales)
}

func (h *Handler) loadLossMonthScenario(ctx context.Context, month time.Time) error {
	if err := h.saveProfiles(ctx,
		profileSeed{"th-cara", "Cara Lewis", payroll.Employed, "20"},
	); err != nil {
		return err
	}
	for day := 0; day < 25; day++ {
		if _, err := h.Engine.AddHoursEntry(ctx, "th-cara", month.AddDate(0, 0, day), decimal.NewFromInt(8)); err != nil {
			return err
		}
	}
	return h.recordSales(ctx, month, []saleSeed{
		{"th-cara", 3, "Consultation", "50", 2, "0"},
	})
}

func (h *Handler) loadSplitShiftsScenario(ctx context.Context, month time.Time) error {
	if err := h.saveProfiles(ctx,
		profileSeed{"th-dani", "Dani Shah", payroll.Employed, "11.44"},
	); err != nil {
		return err
	}
	for day := 0; day < 10; day++ {
		date := month.AddDate(0, 0, day)
		for _, hours := range []string{"3.5", "4.25"} {
			if _, err := h.Engine.AddHoursEntry(ctx, "th-dani", date, decimal.RequireFromString(hours)); err != nil {
				return err
			}
		}
	}
	return h.recordSales(ctx, month, []saleSeed{
		{"th-dani", 1, "Brow shape", "18", 12, "6"},
		{"th-dani", 6, "Massage", "65", 8, "0"},
	})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type profileSeed struct {
	id         payroll.TherapistID
	name       string
	employment payroll.EmploymentType
	rate       string
}

func (h *Handler) saveProfiles(ctx context.Context, seeds ...profileSeed) error {
	for _, s := range seeds {
		p, err := payroll.NewProfile(s.id, s.name, s.employment, decimal.RequireFromString(s.rate))
		if err != nil {
			return err
		}
		if err := h.Store.SaveProfile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// saleSeed is a single-item sale on day offset of the month.
type saleSeed struct {
	therapist payroll.TherapistID
	day       int
	item      string
	price     string
	quantity  int64
	discount  string
}

func (h *Handler) recordSales(ctx context.Context, month time.Time, seeds []saleSeed) error {
	for i, s := range seeds {
		item := payroll.LineItem{
			Name:     s.item,
			Category: "service",
			Price:    decimal.RequireFromString(s.price),
			Quantity: s.quantity,
			Discount: decimal.RequireFromString(s.discount),
		}
		sale := payroll.Sale{
			ID:            payroll.SaleID(fmt.Sprintf("demo-%s-%d", s.therapist, i)),
			Date:          month.AddDate(0, 0, s.day).Add(14 * time.Hour),
			TherapistID:   s.therapist,
			Items:         []payroll.LineItem{item},
			Subtotal:      item.Price.Mul(decimal.NewFromInt(s.quantity)),
			Discount:      item.Discount,
			Total:         item.Revenue(),
			PaymentMethod: payroll.PaymentCard,
		}
		if _, err := h.Engine.RecordSale(ctx, sale); err != nil {
			return err
		}
	}
	return nil
}
