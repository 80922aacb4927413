package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
)

// MiddlewareOptions controls how decisions are enforced.
type MiddlewareOptions struct {
	// Mode is models.RateLimitModeBlock (reject) or models.RateLimitModeCount
	// (log over-limit requests but serve them).
	Mode string
	// ResponseCode is the status for rejected requests. Zero means 429.
	ResponseCode int
	// ExemptPaths bypass the limiter entirely and are not counted.
	ExemptPaths []string
	// PathTransformation is applied to the path before it becomes part of the key.
	PathTransformation string
}

// OptionsFromConfig maps the rate limit configuration onto middleware options.
func OptionsFromConfig(cfg models.RateLimitConfig) MiddlewareOptions {
	return MiddlewareOptions{
		Mode:               cfg.Mode,
		ResponseCode:       cfg.ResponseCode,
		ExemptPaths:        cfg.ExemptPaths,
		PathTransformation: cfg.PathTransformation,
	}
}

// Middleware returns HTTP middleware that enforces limiter for every request
// not in opts.ExemptPaths. If the limiter fails, the request is served and the
// error logged, so a store outage does not take the API down.
func Middleware(limiter Limiter, opts MiddlewareOptions) func(http.Handler) http.Handler {
	status := opts.ResponseCode
	if status == 0 {
		status = http.StatusTooManyRequests
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opts.ExemptPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := KeyFor(r, opts.PathTransformation)

			decision, err := limiter.CheckAndRecord(ctx, key)
			if err != nil {
				slog.ErrorContext(ctx, "Rate limit check failed, allowing request",
					"key", key.String(),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			info := decision.Info
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))

			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			retryAfterSecs := int(info.RetryAfter.Seconds()) + 1

			if opts.Mode == models.RateLimitModeCount {
				slog.InfoContext(ctx, "Rate limit exceeded, counting only",
					"client", key.Client,
					"path", key.Path,
					"count", info.Count,
					"limit", info.Limit,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)

			errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited).
				WithRequestID(logger.RequestID(ctx))
			json.NewEncoder(w).Encode(errorResp)

			slog.WarnContext(ctx, "Rate limit exceeded",
				"client", key.Client,
				"path", key.Path,
				"count", info.Count,
				"limit", info.Limit,
				"retry_after", retryAfterSecs,
			)
		})
	}
}
