// Package server implements the mediacache HTTP server and routes.
package server

import (
	"context"
	"net/http"

	"github.com/musefactory/mediacache/internal/config"
	"github.com/musefactory/mediacache/internal/handlers"
	"github.com/musefactory/mediacache/internal/ledger"
	"github.com/musefactory/mediacache/internal/pipeline"
	"github.com/musefactory/mediacache/internal/storage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the mediacache HTTP server.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	pipe       *pipeline.Pipeline
	selector   *storage.Selector
	usage      *ledger.Ledger
	optimize   *handlers.OptimizeHandler
	upload     *handlers.UploadHandler
	monitor    *handlers.MonitorHandler
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Storage string `json:"storage" example:"s3" doc:"Selected storage provider"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithPipeline sets the transform pipeline.
func WithPipeline(pipe *pipeline.Pipeline) ServerOption {
	return func(s *Server) {
		s.pipe = pipe
	}
}

// WithSelector sets the storage selector.
func WithSelector(selector *storage.Selector) ServerOption {
	return func(s *Server) {
		s.selector = selector
	}
}

// WithLedger sets the usage ledger.
func WithLedger(usage *ledger.Ledger) ServerOption {
	return func(s *Server) {
		s.usage = usage
	}
}

// New creates a Server with the given configuration and wires up all
// routes on the Chi router with Huma API.
func New(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("mediacache API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.optimize = handlers.NewOptimizeHandler(s.pipe)
	s.upload = handlers.NewUploadHandler(s.pipe, cfg.Limits.MaxSourceBytes)
	s.monitor = handlers.NewMonitorHandler(s.selector, s.usage, cfg.Monitor.AccessCode)

	s.registerRoutes()
	return s, nil
}

// ListenAndServe starts the HTTP server on the given address.
// Middleware chain: metricsMiddleware -> securityHeaders -> router.
func (s *Server) ListenAndServe(addr string) error {
	var handler http.Handler = s.router
	handler = securityHeaders(handler)
	handler = metricsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped handler. Used by tests.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = securityHeaders(handler)
	handler = metricsMiddleware(handler)
	return handler
}

// registerRoutes configures all routes on the Chi router. Huma routes
// (/health, /docs, /openapi.json) and /metrics come first; the
// application endpoints follow.
func (s *Server) registerRoutes() {
	// Register /health via Huma for auto-OpenAPI documentation.
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the mediacache server.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		provider := "none"
		if s.selector != nil {
			if store := s.selector.Default(); store != nil {
				provider = store.Name()
			}
		}
		return &HealthOutput{Body: HealthBody{Status: "ok", Storage: provider}}, nil
	})

	// Register /metrics via promhttp.Handler().
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/optimize", s.optimize.Optimize)
	s.router.Post("/upload", s.upload.Upload)
	s.router.Get("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	s.router.Get("/monitor", s.monitor.Monitor)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("mediacache: content-addressed media transform cache\n"))
	})
}
