package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/journals"
	"github.com/ledgerline/ledgerline/internal/accounting/periods"
	"github.com/ledgerline/ledgerline/internal/accounting/reports"
	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/ar"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *accounts.Handler
	PeriodsHandler  *periods.Handler
	JournalsHandler *journals.Handler
	ReportsHandler  *reports.Handler
	ARHandler       *ar.Handler
	APHandler       *ap.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/accounting", func(r chi.Router) {
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(r)
		}
		if params.PeriodsHandler != nil {
			params.PeriodsHandler.MountRoutes(r)
		}
		if params.JournalsHandler != nil {
			params.JournalsHandler.MountRoutes(r)
		}
	})
	if params.ReportsHandler != nil {
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	}
	if params.ARHandler != nil {
		r.Route("/finance/ar", params.ARHandler.MountRoutes)
	}
	if params.APHandler != nil {
		r.Route("/finance/ap", params.APHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
