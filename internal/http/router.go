package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"issuepatch/internal/handlers"
	"issuepatch/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	IssueService service.IssueService
	HealthChecks map[string]handlers.CheckFunc
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	rankHandler := handlers.NewRankHandler(deps.IssueService)
	patchHandler := handlers.NewPatchHandler(deps.IssueService)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/rank", rankHandler)
		r.Method(http.MethodPost, "/patches", patchHandler)
	})

	// Liveness probe
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
