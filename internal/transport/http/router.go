package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onboard/internal/platform/middleware"
)

// RouterConfig carries what the router needs beyond the handler itself.
type RouterConfig struct {
	Validator middleware.TokenValidator
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// NewRouter mounts the public callback endpoint, the operator API and the
// operational endpoints.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestContext)

	r.Get("/healthz", h.HandleHealth)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/callbacks", h.HandleCallback)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireOperator(cfg.Validator, cfg.Logger))
		h.RegisterAPI(api)
	})
	return r
}
