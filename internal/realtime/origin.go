package realtime

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// checkOrigin accepts non-browser clients, same-host pages, loopback pages and
// the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	host := originHost(origin)
	if host == "" {
		return false
	}
	if host == stripPort(r.Host) || isLoopback(host) {
		return true
	}
	_, ok := h.origins[host]
	return ok
}

// originHost extracts the lower-cased host of an origin or bare host:port.
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	if strings.Contains(origin, "://") {
		parsed, err := url.Parse(origin)
		if err != nil {
			return ""
		}
		return strings.ToLower(parsed.Hostname())
	}
	return strings.ToLower(stripPort(origin))
}

func stripPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
