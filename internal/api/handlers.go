package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/greeting"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/version"

	"github.com/gorilla/mux"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the gatekeeper API
type Handlers struct {
	greeter   *greeting.Service
	store     Pinger
	version   version.Info
	startTime time.Time
}

// NewHandlers creates a new handlers instance. store may be nil when the
// limiter does not use a window store.
func NewHandlers(greeter *greeting.Service, store Pinger, ver version.Info) *Handlers {
	return &Handlers{
		greeter:   greeter,
		store:     store,
		version:   ver,
		startTime: time.Now(),
	}
}

// Hello greets an anonymous caller.
// ANY /hello
func (h *Handlers) Hello(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.greeter.Greet(r.Context(), ""))
}

// HelloName greets the caller named in the path.
// ANY /hello/{name}
func (h *Handlers) HelloName(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.writeJSONResponse(w, http.StatusOK, h.greeter.Greet(r.Context(), name))
}

// HealthCheck handles health check requests
// GET /health
// A failed store ping reports "degraded" with status 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "Health check: store ping failed", "error", err)
			response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}

	response.AddMetric("instance_id", h.version.InstanceID)
	response.AddMetric("platform", h.version.Platform)

	h.writeJSONResponse(w, http.StatusOK, response)
}

// NotFound answers requests that matched no route.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, models.ErrorCodeNotFound, "Not found")
}

// MethodNotAllowed answers requests whose path matched but method did not.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, models.ErrorCodeMethodNotAllowed, "Method not allowed")
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError writes a models.ErrorResponse carrying the request ID.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := models.NewErrorResponse(message, code).
		WithRequestID(logger.RequestID(r.Context())).
		WithDetail("path", r.URL.Path)
	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode error response", "error", err)
	}
}
