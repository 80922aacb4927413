package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"gatekeeper/internal/models"
)

// ClientIP returns the address of the peer that opened the connection.
// Forwarding headers such as X-Forwarded-For are ignored because the client
// controls them.
func ClientIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NormalizePath returns the path used in the rate limit key. PathTransformNone
// keeps the path exactly as sent on the wire, so /Hello and /hello, or %41
// and A, are different buckets.
func NormalizePath(r *http.Request, transform string) string {
	switch transform {
	case models.PathTransformLowercase:
		return strings.ToLower(r.URL.EscapedPath())
	case models.PathTransformURLDecode:
		return r.URL.Path
	default:
		return r.URL.EscapedPath()
	}
}

// KeyFor builds the rate limit key for r.
func KeyFor(r *http.Request, transform string) Key {
	return Key{
		Client: ClientIP(r),
		Path:   NormalizePath(r, transform),
	}
}
