package ratelimit

import (
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"

	// UnknownClient is returned when no proxy header identifies the client.
	// All such clients share one bucket.
	UnknownClient = "unknown"
)

// ClientIP extracts the client address from proxy headers.
//
// The leftmost X-Forwarded-For entry wins, then X-Real-IP. These headers are
// trusted as-is, so the server must sit behind a proxy that sets them.
func ClientIP(r *http.Request) string {
	if r == nil {
		return UnknownClient
	}
	if forwardedFor := r.Header.Get(HeaderForwardedFor); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get(HeaderRealIP)); realIP != "" {
		return realIP
	}
	return UnknownClient
}
