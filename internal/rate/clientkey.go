package rate

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey derives the rate-limit key for r: the first non-blank entry of
// X-Forwarded-For, else the host part of RemoteAddr.
//
// X-Forwarded-For is trusted as sent. Deployments not behind a proxy that
// overwrites the header let clients choose their own key.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
