package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address without the port. Forwarding
// headers are honored only when chi's RealIP runs first, which the router
// does for trusted proxies alone.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
