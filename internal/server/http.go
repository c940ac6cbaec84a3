// Package server wires the HTTP API: router, auth middleware, and JSON
// handlers over the submission, reconciliation, and alert services.
package server

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	alertservice "indicator-reporting/backend/internal/alert/service"
	assignmentrepo "indicator-reporting/backend/internal/assignment/repository"
	reconcileservice "indicator-reporting/backend/internal/reconcile/service"
	recordrepo "indicator-reporting/backend/internal/record/repository"
	"indicator-reporting/backend/internal/security"
	submissionservice "indicator-reporting/backend/internal/submission/service"
)

// Pinger reports store connectivity for readiness checks (e.g. *sql.DB).
type Pinger interface {
	Ping() error
}

// Deps holds the services and stores the HTTP handlers dispatch to.
type Deps struct {
	Submissions *submissionservice.Service
	Alerts      *alertservice.Service
	Reconciler  *reconcileservice.Service
	Records     recordrepo.Repository
	Assignments assignmentrepo.Repository
	Tokens      *security.TokenProvider

	// Pinger is used by the readiness endpoint. If nil, the DB check is skipped.
	Pinger Pinger

	// CORSAllowedOrigins is the list of allowed browser origins.
	CORSAllowedOrigins []string
	// RequestTimeout bounds each request's handler execution.
	RequestTimeout time.Duration
}

// NewRouter builds the chi router with middleware and all API routes mounted.
func NewRouter(d Deps) chi.Router {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	h := &handlers{deps: d, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(d.Tokens))

		r.Get("/status", h.dataEntryStatus)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.listRecords)
			r.Post("/", h.submitRecord)
			r.Get("/{recordID}/audit", h.listRecordAudit)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.listAlerts)
			r.Post("/{alertID}/read", h.markAlertRead)
			r.Post("/read-all", h.markAllAlertsRead)
		})

		r.Post("/admin/reconciliation/run", h.runReconciliation)
	})

	return r
}
