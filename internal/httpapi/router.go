package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/developforgood/cycle-orchestrator/pkg/health"
)

// NewRouter assembles the chi.Mux exposing the OrchestratorAPI described
// in spec.md §6, the job supplements in SPEC_FULL.md §10, and liveness
// and readiness probes backed by the storage gateway and task engine.
func NewRouter(h *Handlers, tasks Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(health.Checks{
		"storage": h.storageHealthcheck,
		"tasks":   tasks.Healthcheck(),
	}))

	r.Route("/imports", func(r chi.Router) {
		r.Post("/{base_id}", h.handleImportBase)
	})

	r.Route("/exports", func(r chi.Router) {
		r.Post("/{cycle_id}", h.handleExportUsers)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.handleListJobs)
		r.Post("/cancel/{job_id}", h.handleCancelJob)
		r.Get("/{id}", h.handleGetJob)
		r.Patch("/{id}", h.handleEditJob)
	})

	return r
}
