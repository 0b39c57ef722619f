package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	hoursEntries    prometheus.Counter
	commissions     *prometheus.CounterVec
	salesRecorded   prometheus.Counter
	apiErrors       *prometheus.CounterVec
	payrollRuns     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers collectors on a fresh registry. Process and Go
// runtime collectors are included.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		hoursEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salon_hours_entries_total",
			Help: "Hours entries appended to the ledger.",
		}),
		commissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salon_commission_computations_total",
			Help: "Commission breakdowns computed, by employment type.",
		}, []string{"employment_type"}),
		salesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salon_sales_recorded_total",
			Help: "Sales accepted into the feed.",
		}),
		apiErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salon_api_errors_total",
			Help: "Error responses by HTTP status.",
		}, []string{"status"}),
		payrollRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salon_payroll_runs_total",
			Help: "Staff-wide payroll runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salon_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.hoursEntries, m.commissions, m.salesRecorded, m.apiErrors,
		m.payrollRuns, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records request latency labelled by chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeError(status int) {
	m.apiErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}
