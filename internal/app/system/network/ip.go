// internal/app/system/network/ip.go

// Package network provides request-level network utilities.
package network

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the originating client IP from the request. Proxy
// headers are consulted first (X-Forwarded-For, then X-Real-IP); the
// leftmost entry in a forwarded chain is the client. Falls back to
// RemoteAddr with the port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
