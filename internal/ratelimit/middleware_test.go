package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func blockOptions() MiddlewareOptions {
	return OptionsFromConfig(models.NewDefaultConfig().RateLimit)
}

func doRequest(handler http.Handler, remoteAddr, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_AllowedRequest(t *testing.T) {
	limiter, clock := newTestLimiter(t, 10, time.Minute)
	handler := Middleware(limiter, blockOptions())(http.HandlerFunc(okHandler))

	rr := doRequest(handler, "192.168.1.1:12345", "/hello")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(clock.Now().Add(time.Minute).Unix(), 10), rr.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rr.Header().Get("Retry-After"))
}

func TestMiddleware_DeniedRequest(t *testing.T) {
	limiter, clock := newTestLimiter(t, 2, time.Minute)
	handler := Middleware(limiter, blockOptions())(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		rr := doRequest(handler, "192.168.1.1:12345", "/hello")
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	clock.Advance(20 * time.Second)
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-123"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "41", rr.Header().Get("Retry-After"))

	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, models.ErrorCodeRateLimited, errResp.Code)
	assert.Equal(t, "Rate limit exceeded", errResp.Message)
	assert.Equal(t, "req-123", errResp.RequestID)
}

func TestMiddleware_KeysByClientAndPath(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	handler := Middleware(limiter, blockOptions())(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, doRequest(handler, "192.168.1.1:1000", "/hello").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "192.168.1.1:2000", "/hello").Code)

	assert.Equal(t, http.StatusOK, doRequest(handler, "192.168.1.1:1000", "/hello/alice").Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, "192.168.1.2:1000", "/hello").Code)
}

func TestMiddleware_IgnoresForwardedHeaders(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	handler := Middleware(limiter, blockOptions())(http.HandlerFunc(okHandler))

	for i, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/hello", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", spoofed)
		req.Header.Set("X-Real-IP", spoofed)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if i == 0 {
			assert.Equal(t, http.StatusOK, rr.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rr.Code, "spoofed headers must not create a new bucket")
		}
	}
}

func TestMiddleware_CustomResponseCode(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	opts := blockOptions()
	opts.ResponseCode = http.StatusForbidden
	handler := Middleware(limiter, opts)(http.HandlerFunc(okHandler))

	doRequest(handler, "192.168.1.1:1", "/hello")
	assert.Equal(t, http.StatusForbidden, doRequest(handler, "192.168.1.1:1", "/hello").Code)
}

func TestMiddleware_CountMode(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	opts := blockOptions()
	opts.Mode = models.RateLimitModeCount
	handler := Middleware(limiter, opts)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rr := doRequest(handler, "192.168.1.1:1", "/hello")
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	d, err := limiter.CheckAndRecord(context.Background(), Key{Client: "192.168.1.1", Path: "/hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.Info.Count, "count mode still records requests")
}

func TestMiddleware_ExemptPaths(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	handler := Middleware(limiter, blockOptions())(http.HandlerFunc(okHandler))

	for i := 0; i < 5; i++ {
		rr := doRequest(handler, "192.168.1.1:1", "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddleware_FailsOpenOnStoreError(t *testing.T) {
	limiter, err := NewFixedWindowLimiter(failingStore{err: errors.New("redis: connection refused")}, 1, time.Minute)
	require.NoError(t, err)
	handler := Middleware(limiter, blockOptions())(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rr := doRequest(handler, "192.168.1.1:1", "/hello")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddleware_PathTransformation(t *testing.T) {
	tests := []struct {
		name       string
		transform  string
		second     string
		wantStatus int
	}{
		{"none keeps case", models.PathTransformNone, "/HELLO", http.StatusOK},
		{"lowercase folds case", models.PathTransformLowercase, "/HELLO", http.StatusTooManyRequests},
		{"none keeps escapes", models.PathTransformNone, "/h%65llo", http.StatusOK},
		{"url_decode merges escapes", models.PathTransformURLDecode, "/h%65llo", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore(time.Minute, 0)
			defer store.Close()
			limiter, err := NewFixedWindowLimiter(store, 1, time.Minute)
			require.NoError(t, err)

			opts := blockOptions()
			opts.PathTransformation = tt.transform
			handler := Middleware(limiter, opts)(http.HandlerFunc(okHandler))

			require.Equal(t, http.StatusOK, doRequest(handler, "192.168.1.1:1", "/hello").Code)
			assert.Equal(t, tt.wantStatus, doRequest(handler, "192.168.1.1:1", tt.second).Code)
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.168.1.1", "192.168.1.1"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
