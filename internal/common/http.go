package common

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of RemoteAddr. Behind a proxy, chi's RealIP
// middleware has already rewritten RemoteAddr from X-Real-IP or
// X-Forwarded-For.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
