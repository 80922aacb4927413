package api

import (
	"net/http"

	"gatekeeper/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// Route binds a path pattern to a handler. An empty Methods list accepts
// any method.
type Route struct {
	Name    string
	Pattern string
	Methods []string
	Handler http.HandlerFunc
}

// RouteTable is registered in order. Exact patterns come before
// parameterised ones so a parameter never shadows an exact path.
type RouteTable []Route

// Routes returns the gatekeeper route table.
func (h *Handlers) Routes() RouteTable {
	return RouteTable{
		{Name: "health", Pattern: "/health", Methods: []string{http.MethodGet}, Handler: h.HealthCheck},
		{Name: "hello", Pattern: "/hello", Handler: h.Hello},
		{Name: "hello_name", Pattern: "/hello/{name}", Handler: h.HelloName},
	}
}

func (rt RouteTable) register(router *mux.Router) {
	for _, route := range rt {
		r := router.HandleFunc(route.Pattern, route.Handler).Name(route.Name)
		if len(route.Methods) > 0 {
			r.Methods(route.Methods...)
		}
	}
}

type routeOptions struct {
	tracingService string
	rateLimiter    func(http.Handler) http.Handler
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeOptions)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation to matched routes.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(o *routeOptions) {
		o.tracingService = serviceName
	}
}

// WithRateLimiter wraps the router, unmatched paths included, in middleware.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(o *routeOptions) {
		o.rateLimiter = middleware
	}
}

// SetupRoutes builds the HTTP handler for the API. From the outside in:
// recovery, request ID, access log, CORS, rate limiter, router.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) http.Handler {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	router := mux.NewRouter()
	if o.tracingService != "" {
		router.Use(otelmux.Middleware(o.tracingService,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health"
			}),
		))
	}

	handlers.Routes().register(router)
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	var handler http.Handler = router
	if o.rateLimiter != nil {
		handler = o.rateLimiter(handler)
	}
	if config.Server.CORS.Enabled {
		handler = corsMiddleware(config.Server.CORS)(handler)
	}
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return handler
}
