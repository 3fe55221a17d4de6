package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ClientIdentifier derives the limiter key for a request: the first hop of
// X-Forwarded-For, then X-Real-IP, then the connection address. When no IP
// is derivable the request gets a random identifier, which effectively
// exempts it from accumulation rather than sharing one bucket.
func ClientIdentifier(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		if first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, errSplit := net.SplitHostPort(r.RemoteAddr); errSplit == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}
	return uuid.NewString()
}
