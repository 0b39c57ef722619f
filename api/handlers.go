/*
handlers.go - HTTP API handlers for the salon compensation engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to payroll.Engine.

ENDPOINTS:
  Therapists:
    GET    /api/therapists                    List therapists
    POST   /api/therapists                    Create or replace a therapist
    GET    /api/therapists/{id}               Therapist details
    POST   /api/therapists/{id}/hours         Add an hours entry
    GET    /api/therapists/{id}/hours         Hours entries in insertion order
    GET    /api/therapists/{id}/commission    Commission breakdown

  Sales:
    POST   /api/sales                         Record a sale

  Reports:
    GET    /api/reports/summary               Revenue over a date range
    GET    /api/reports/payroll               Every therapist for one period
    GET    /api/reports/payroll/latest        Last scheduled month-end run

WINDOW QUERY PARAMETERS:
  ?period=day|week|month|year&date=YYYY-MM-DD   Calendar window containing date
  ?from=YYYY-MM-DD&to=YYYY-MM-DD                Explicit inclusive range
  With neither, the current month is used.

ERROR HANDLING:
  - 400: Invalid input, invalid hours, inconsistent sale, bad period
  - 404: Unknown therapist
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/warp/salon-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can wipe their data.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pinger is implemented by stores with a reachable backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *payroll.Engine
	Store     payroll.Store
	Metrics   *Metrics
	Scheduler *PayrollScheduler

	// Now resolves the default window; tests pin it.
	Now func() time.Time

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler over the engine and the store backing it.
func NewHandler(engine *payroll.Engine, store payroll.Store, metrics *Metrics) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		Engine:  engine,
		Store:   store,
		Metrics: metrics,
		Now:     time.Now,
	}
}

// =============================================================================
// THERAPIST HANDLERS
// =============================================================================

// ListTherapists returns all therapists ordered by name.
func (h *Handler) ListTherapists(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list therapists", err)
		return
	}

	dtos := make([]TherapistDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toTherapistDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTherapist returns a single therapist.
func (h *Handler) GetTherapist(w http.ResponseWriter, r *http.Request) {
	id := payroll.TherapistID(chi.URLParam(r, "id"))

	p, err := h.Store.Profile(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get therapist", err)
		return
	}
	writeJSON(w, http.StatusOK, toTherapistDTO(p))
}

// CreateTherapist creates or replaces a therapist profile.
func (h *Handler) CreateTherapist(w http.ResponseWriter, r *http.Request) {
	var req CreateTherapistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		h.badRequest(w, "id and name are required", nil)
		return
	}

	employment, err := payroll.ParseEmploymentType(req.EmploymentType)
	if err != nil {
		h.fail(w, r, "Invalid employment type", err)
		return
	}
	p, err := payroll.NewProfile(payroll.TherapistID(req.ID), strings.TrimSpace(req.Name), employment, req.HourlyRate.Decimal)
	if err != nil {
		h.fail(w, r, "Invalid therapist", err)
		return
	}

	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		h.fail(w, r, "Failed to save therapist", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTherapistDTO(p))
}

// =============================================================================
// HOURS HANDLERS
// =============================================================================

// AddHours appends an hours entry for a known therapist.
func (h *Handler) AddHours(w http.ResponseWriter, r *http.Request) {
	id := payroll.TherapistID(chi.URLParam(r, "id"))

	var req AddHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body", err)
		return
	}
	date, err := payroll.ParseDate(req.Date)
	if err != nil {
		h.badRequest(w, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	hours, err := payroll.ParseHours(string(req.Hours))
	if err != nil {
		h.fail(w, r, "Invalid hours", err)
		return
	}

	entry, err := h.Engine.AddHoursEntry(r.Context(), id, date, hours)
	if err != nil {
		h.fail(w, r, "Failed to add hours", err)
		return
	}
	h.Metrics.hoursEntries.Inc()
	writeJSON(w, http.StatusCreated, toHoursEntryDTO(entry))
}

// ListHours returns a therapist's entries in insertion order, optionally
// restricted to a from/to date range.
func (h *Handler) ListHours(w http.ResponseWriter, r *http.Request) {
	id := payroll.TherapistID(chi.URLParam(r, "id"))
	ctx := r.Context()

	if _, err := h.Store.Profile(ctx, id); err != nil {
		h.fail(w, r, "Failed to get therapist", err)
		return
	}

	var window *payroll.Window
	if r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "" || r.URL.Query().Get("period") != "" {
		wdw, err := h.windowFromQuery(r)
		if err != nil {
			h.fail(w, r, "Invalid window", err)
			return
		}
		window = &wdw
	}

	resp := HoursListDTO{TherapistID: string(id), Entries: []HoursEntryDTO{}}
	total := decimal.Zero
	for e, err := range h.Engine.Ledger.Entries(ctx, id) {
		if err != nil {
			h.fail(w, r, "Failed to load hours", err)
			return
		}
		if window != nil && !window.ContainsDate(e.Date) {
			continue
		}
		resp.Entries = append(resp.Entries, toHoursEntryDTO(e))
		total = total.Add(e.Hours)
	}
	resp.Total = total.String()
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// GetCommission computes a therapist's breakdown for the requested window.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id := payroll.TherapistID(chi.URLParam(r, "id"))

	window, err := h.windowFromQuery(r)
	if err != nil {
		h.fail(w, r, "Invalid window", err)
		return
	}

	c, err := h.Engine.ComputeCommission(r.Context(), id, window.Start, window.End)
	if err != nil {
		h.fail(w, r, "Failed to compute commission", err)
		return
	}
	h.Metrics.commissions.WithLabelValues(c.Breakdown.EmploymentType.String()).Inc()
	writeJSON(w, http.StatusOK, toCommissionDTO(c))
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// RecordSale validates and appends a sale. Replaying a sale ID is a no-op.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body", err)
		return
	}
	sale, err := req.toSale()
	if err != nil {
		h.badRequest(w, "Invalid sale date", err)
		return
	}

	saved, err := h.Engine.RecordSale(r.Context(), sale)
	if err != nil {
		h.fail(w, r, "Failed to record sale", err)
		return
	}
	h.Metrics.salesRecorded.Inc()
	writeJSON(w, http.StatusCreated, toSaleDTO(saved))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// RevenueSummary totals revenue of every sale in the window.
func (h *Handler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowFromQuery(r)
	if err != nil {
		h.fail(w, r, "Invalid window", err)
		return
	}

	total, err := h.Engine.RevenueSummary(r.Context(), window)
	if err != nil {
		h.fail(w, r, "Failed to summarise revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, RevenueSummaryDTO{
		From:    window.Start.Format(payroll.DateLayout),
		To:      window.End.Format(payroll.DateLayout),
		Revenue: total.StringFixed(2),
	})
}

// RevenueReport groups the window's revenue by ?group=therapist|customer|service.
// The group defaults to therapist.
func (h *Handler) RevenueReport(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowFromQuery(r)
	if err != nil {
		h.fail(w, r, "Invalid window", err)
		return
	}

	group := payroll.GroupTherapist
	if g := r.URL.Query().Get("group"); g != "" {
		if group, err = payroll.ParseReportGroup(g); err != nil {
			h.fail(w, r, "Invalid report group", err)
			return
		}
	}

	report, err := h.Engine.RevenueBreakdown(r.Context(), window, group)
	if err != nil {
		h.fail(w, r, "Failed to group revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, toRevenueReportDTO(report))
}

// PayrollReport computes every therapist's commission for one window.
func (h *Handler) PayrollReport(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowFromQuery(r)
	if err != nil {
		h.fail(w, r, "Invalid window", err)
		return
	}

	run, err := h.Engine.Run(r.Context(), window)
	if err != nil {
		h.Metrics.payrollRuns.WithLabelValues("api", "error").Inc()
		h.fail(w, r, "Failed to run payroll", err)
		return
	}
	h.Metrics.payrollRuns.WithLabelValues("api", outcome(run)).Inc()
	for _, line := range run.Lines {
		if line.Err == nil {
			h.Metrics.commissions.WithLabelValues(line.Commission.Breakdown.EmploymentType.String()).Inc()
		}
	}
	writeJSON(w, http.StatusOK, toPayrollRunDTO(run))
}

// LatestPayroll returns the scheduler's most recent month-end run.
func (h *Handler) LatestPayroll(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Payroll scheduler is not running", nil)
		return
	}
	run, at, ok := h.Scheduler.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "No scheduled payroll run yet", nil)
		return
	}
	dto := toPayrollRunDTO(run)
	dto.GeneratedAt = at.Format(time.RFC3339)
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and, when the store supports it, reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// windowFromQuery resolves ?from&to, then ?period&date, then the current
// month.
func (h *Handler) windowFromQuery(r *http.Request) (payroll.Window, error) {
	q := r.URL.Query()

	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		start, err := payroll.ParseDate(from)
		if err != nil {
			return payroll.Window{}, errors.Join(payroll.ErrInvalidPeriod, err)
		}
		end, err := payroll.ParseDate(to)
		if err != nil {
			return payroll.Window{}, errors.Join(payroll.ErrInvalidPeriod, err)
		}
		w := payroll.DateWindow(start, end)
		return w, w.Validate()
	}

	kind := payroll.PeriodMonth
	if p := q.Get("period"); p != "" {
		k, err := payroll.ParsePeriodKind(p)
		if err != nil {
			return payroll.Window{}, err
		}
		kind = k
	}

	ref := payroll.Date(h.Now())
	if d := q.Get("date"); d != "" {
		parsed, err := payroll.ParseDate(d)
		if err != nil {
			return payroll.Window{}, errors.Join(payroll.ErrInvalidPeriod, err)
		}
		ref = parsed
	}
	return payroll.WindowFor(kind, ref), nil
}

// fail maps a domain error to its HTTP status and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case payroll.IsNotFound(err):
		status = http.StatusNotFound
	case payroll.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error(message)
	}
	h.Metrics.observeError(status)
	writeJSONError(w, status, message, err)
}

func (h *Handler) badRequest(w http.ResponseWriter, message string, err error) {
	h.Metrics.observeError(http.StatusBadRequest)
	writeError(w, http.StatusBadRequest, message, err)
}

func outcome(run payroll.PayrollRun) string {
	if run.Failed > 0 {
		return "partial"
	}
	return "ok"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeJSONError is writeError plus a machine-readable code for domain
// errors.
func writeJSONError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: errorCode(err)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, payroll.ErrInvalidHours):
		return "invalid_hours"
	case errors.Is(err, payroll.ErrMissingProfile):
		return "missing_profile"
	case errors.Is(err, payroll.ErrInvalidProfile):
		return "invalid_profile"
	case errors.Is(err, payroll.ErrInconsistentSale):
		return "inconsistent_sale"
	case errors.Is(err, payroll.ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, payroll.ErrInvalidReportGroup):
		return "invalid_report_group"
	default:
		return ""
	}
}
