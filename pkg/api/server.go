package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/adminkit/pkg/export"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/lov"
	"github.com/platinummonkey/adminkit/pkg/middleware"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/search"
)

// DefaultMaxBodyBytes bounds request bodies
const DefaultMaxBodyBytes = 1 << 20

// Options wires the server's collaborators. Meta and Engine are required.
type Options struct {
	Meta     *extension.MetadataService
	Engine   *search.Engine
	LOV      *lov.Registry
	Exporter *export.Exporter

	// Checker guards extension, settings and export routes. nil leaves
	// them open; searches are authorized by the engine either way.
	Checker rbac.Checker

	// RateLimit runs after identity resolution. nil disables it.
	RateLimit *middleware.RateLimitMiddleware

	Logger   *logrus.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker

	// Tracing wraps the handler with otelhttp
	Tracing      bool
	MaxBodyBytes int64
}

// Server is the adminkit HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer builds the router and middleware chain
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.LOV == nil {
		opts.LOV = lov.NewRegistry()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	router := mux.NewRouter()
	var guard *rbac.PermissionMiddleware
	if opts.Checker != nil {
		guard = rbac.NewPermissionMiddleware(opts.Checker)
	}

	NewExtensionHandlers(opts.Meta, opts.LOV, opts.Metrics).RegisterRoutes(router, guard)
	NewSearchHandlers(opts.Engine, opts.Exporter).RegisterRoutes(router, guard)
	NewLOVHandlers(opts.LOV).RegisterRoutes(router)

	if opts.Health != nil {
		observability.RegisterHealthRoutes(router, opts.Health)
	}
	if opts.Registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(opts.Registry)).Methods("GET")
	}
	if opts.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	chain := []func(http.Handler) http.Handler{
		observability.RecoveryMiddleware(opts.Logger),
		httputil.RequestIDMiddleware,
		IdentityMiddleware(opts.Logger),
		httputil.LoggingMiddleware(opts.Logger),
	}
	if opts.RateLimit != nil {
		chain = append(chain, opts.RateLimit.Handler)
	}
	chain = append(chain,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)
	handler := httputil.Chain(chain...)(router)
	if opts.Tracing {
		handler = otelhttp.NewHandler(handler, "adminkit-api")
	}

	return &Server{router: router, handler: handler}
}

// Handler returns the instrumented root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the underlying router for additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func logFailure(r *http.Request, err error) {
	entry := observability.FromContext(r.Context(), nil).WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	if httputil.StatusOf(err) >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Debug("request rejected")
}
