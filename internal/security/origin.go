package security

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates websocket origins.
type OriginChecker struct {
	allowedOrigins []string
}

// NewOriginChecker creates a checker. Requests without an Origin header,
// localhost pages and pages served from the API's own host are always
// allowed; allowedOrigins adds exact origins or "*.example.com" patterns.
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{allowedOrigins: allowedOrigins}
}

// CheckOrigin validates the origin header in a request.
func (oc *OriginChecker) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// CLI clients send no Origin.
	if origin == "" {
		return true
	}

	parsedOrigin, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if isLocalhost(parsedOrigin.Hostname()) || strings.EqualFold(parsedOrigin.Host, r.Host) {
		return true
	}

	for _, allowed := range oc.allowedOrigins {
		if matchOrigin(parsedOrigin, origin, allowed) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// matchOrigin supports exact matches and wildcard subdomains (*.example.com).
func matchOrigin(parsed *url.URL, origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if domain, ok := strings.CutPrefix(allowed, "*."); ok {
		host := parsed.Hostname()
		return host == domain || strings.HasSuffix(host, "."+domain)
	}
	return false
}
