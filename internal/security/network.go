package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ParseTrustedProxies parses CIDR and IP entries into concrete CIDR ranges.
func ParseTrustedProxies(trustedProxies []string) ([]*net.IPNet, error) {
	parsed := make([]*net.IPNet, 0, len(trustedProxies))

	for _, proxy := range trustedProxies {
		trimmed := strings.TrimSpace(proxy)
		if trimmed == "" {
			continue
		}

		// Single IP
		if ip := net.ParseIP(trimmed); ip != nil {
			if ip4 := ip.To4(); ip4 != nil {
				ip = ip4
			}
			parsed = append(parsed, &net.IPNet{
				IP:   ip,
				Mask: net.CIDRMask(len(ip)*8, len(ip)*8),
			})
			continue
		}

		// CIDR range
		_, cidr, err := net.ParseCIDR(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", trimmed, err)
		}
		parsed = append(parsed, cidr)
	}

	return parsed, nil
}

// IsTrustedProxy reports whether remoteAddr belongs to one of trusted CIDRs.
func IsTrustedProxy(remoteAddr string, trustedProxies []*net.IPNet) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	ip := parseIPFromAddress(remoteAddr)
	if ip == nil {
		return false
	}

	for _, trusted := range trustedProxies {
		if trusted != nil && trusted.Contains(ip) {
			return true
		}
	}

	return false
}

// RequestClientIP resolves the client IP from the request.
// Forwarded headers are used only when the remote address is trusted.
func RequestClientIP(r *http.Request, trustedProxies []*net.IPNet) string {
	if r == nil {
		return ""
	}

	remoteAddr := r.RemoteAddr
	trusted := IsTrustedProxy(remoteAddr, trustedProxies)

	if trusted {
		if xff := firstForwardedValue(r.Header.Get("X-Forwarded-For")); xff != "" {
			if ip := parseIPFromAddress(xff); ip != nil {
				return ip.String()
			}
		}
		if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" {
			if ip := parseIPFromAddress(xRealIP); ip != nil {
				return ip.String()
			}
		}
	}

	if ip := parseIPFromAddress(remoteAddr); ip != nil {
		return ip.String()
	}

	return ""
}

// ClientIPExtractor returns a rate-limit key function that resolves the
// client IP through trustedProxies.
func ClientIPExtractor(trustedProxies []*net.IPNet) func(r *http.Request) string {
	return func(r *http.Request) string {
		if ip := RequestClientIP(r, trustedProxies); ip != "" {
			return ip
		}
		return r.RemoteAddr
	}
}

func firstForwardedValue(value string) string {
	if value == "" {
		return ""
	}
	parts := strings.Split(value, ",")
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

func parseIPFromAddress(address string) net.IP {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil
	}

	host, _, err := net.SplitHostPort(trimmed)
	if err == nil {
		return net.ParseIP(host)
	}

	return net.ParseIP(strings.Trim(trimmed, "[]"))
}
