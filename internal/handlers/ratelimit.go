package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RateLimiter decides whether a keyed request may proceed.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest charges the request against scope's budget for the client address. A nil
// limiter allows everything.
func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(scope + "|" + clientIP(r))
}

// clientIP prefers the first valid X-Forwarded-For hop, then X-Real-IP, then the peer address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if addr, err := netip.ParseAddr(realIP); err == nil {
			return addr.String()
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}
