/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. requestLog: Structured access log via logrus
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Instrument: Prometheus latency histogram
  6. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/therapists/*     Directory, hours, commission
  /api/sales            Sales feed
  /api/reports/*        Revenue summary, grouped revenue and payroll runs
  /api/scenarios/*      Demo data (disabled in production)
  /healthz              Liveness and store reachability
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Put the server behind an authenticating
  proxy before exposing it beyond the salon network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
)

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	AllowedOrigins []string

	// EnableScenarios mounts the demo-data routes, which wipe the store.
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Instrument)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/therapists", func(r chi.Router) {
			r.Get("/", h.ListTherapists)
			r.Post("/", h.CreateTherapist)
			r.Get("/{id}", h.GetTherapist)
			r.Get("/{id}/hours", h.ListHours)
			r.Post("/{id}/hours", h.AddHours)
			r.Get("/{id}/commission", h.GetCommission)
		})

		r.Post("/sales", h.RecordSale)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.RevenueSummary)
			r.Get("/revenue", h.RevenueReport)
			r.Get("/payroll", h.PayrollReport)
			r.Get("/payroll/latest", h.LatestPayroll)
		})

		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetData)
			})
		}
	})

	return r
}

// requestLog writes one logrus line per request.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"remote":     r.RemoteAddr,
		})
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Debug("request handled")
		}
	})
}
