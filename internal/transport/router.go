package transport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/bpmonitor/internal/config"
	"github.com/pitabwire/bpmonitor/internal/history"
	"github.com/pitabwire/bpmonitor/internal/observability"
	"github.com/pitabwire/bpmonitor/model"
)

// HistoryService is the read API behind the history endpoints.
type HistoryService interface {
	List(ctx context.Context, req history.Request) (model.HistoryPage, error)
	Debug(ctx context.Context) model.TableCounts
	Detail(ctx context.Context, id string) (model.InstanceDetail, error)
}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	History   HistoryService
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
	Readiness observability.ReadinessChecks
	APIDoc    http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, metrics and the API document are
// served outside the base path and skip request logging.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := deps.Config.Server

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}
	r.Use(CORS(srv.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteMethodNotAllowed(w)
	})

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))

	mcfg := deps.Config.Observability.Metrics
	if mcfg.Enabled && deps.Gatherer != nil {
		path := mcfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler(deps.Gatherer))
	}
	if deps.APIDoc != nil {
		r.Method(http.MethodGet, "/openapi.json", deps.APIDoc)
	}

	r.Route(srv.BasePath+"/bp-history", func(r chi.Router) {
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(srv.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Get("/", handleHistory(deps.History))
		r.Get("/{id}", handleInstance(deps.History))
	})

	return r
}
