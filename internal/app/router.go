package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	closehttp "github.com/defterdar/defterdar/internal/close"
	"github.com/defterdar/defterdar/internal/invoicing"
	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/accounts"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/ledger/periods"
	"github.com/defterdar/defterdar/internal/ledger/reports"
	"github.com/defterdar/defterdar/internal/observability"
	"github.com/defterdar/defterdar/internal/platform/httpx"
	"github.com/defterdar/defterdar/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	JournalHandler  *ledger.Handler
	AccountsHandler *accounts.Handler
	PeriodsHandler  *periods.Handler
	MappingsHandler *mappings.Handler
	ReportsHandler  *reports.Handler
	InvoiceHandler  *invoicing.Handler
	CloseHandler    *closehttp.Handler
	Metrics         *observability.Metrics
	Jobs            *jobs.Client
	Pool            *pgxpool.Pool
}

// NewRouter assembles the chi router with the default middleware stack
// and all module routes.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config}) {
		r.Use(mw)
	}
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Database unreachable", "")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.JournalHandler != nil {
			r.Route("/journal-entries", params.JournalHandler.MountRoutes)
		}
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.PeriodsHandler != nil {
			r.Route("/periods", params.PeriodsHandler.MountRoutes)
		}
		if params.MappingsHandler != nil {
			r.Route("/account-mappings", params.MappingsHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.InvoiceHandler != nil {
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
			r.Route("/contacts", params.InvoiceHandler.MountContactRoutes)
		}
		if params.CloseHandler != nil {
			r.Route("/close", params.CloseHandler.MountRoutes)
		}
		if params.Jobs != nil {
			r.Post("/reports/warmup", func(w http.ResponseWriter, req *http.Request) {
				info, err := params.Jobs.EnqueueReportsWarmup(req.Context(), req.URL.Query().Get("as_of"))
				if err != nil {
					httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", err.Error())
					return
				}
				httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
			})
		}
	})

	return r
}
