// Package models - API response types.
//
// Every body gatekeeper writes is JSON. Successful greetings carry a single
// "message" field; failures use ErrorResponse so clients can switch on Code.
package models

import (
	"time"
)

// GreetingResponse is the body of both greeting routes.
type GreetingResponse struct {
	Message string `json:"message"`
}

// ErrorResponse provides structured error information.
//
// Code is machine-readable (NOT_FOUND, RATE_LIMITED, ...); Message is for
// humans. RequestID echoes the correlation ID used in the service logs.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Extra context
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Correlation ID
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Health status constants
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusUnknown   = "unknown"
)

// Error codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: no route matched
	ErrorCodeRateLimited        = "RATE_LIMITED"        // 429: admission control rejected the request
	ErrorCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"  // 405
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
)

func NewGreetingResponse(message string) *GreetingResponse {
	return &GreetingResponse{Message: message}
}

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// WithRequestID sets the correlation ID and returns the response for chaining.
func (e *ErrorResponse) WithRequestID(id string) *ErrorResponse {
	e.RequestID = id
	return e
}

// WithDetail adds a key/value to Details.
func (e *ErrorResponse) WithDetail(key, value string) *ErrorResponse {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

// AddComponent records a component's health. An unhealthy component
// degrades an otherwise healthy overall status.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
	if status == StatusUnhealthy && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
