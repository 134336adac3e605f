package handlers

import (
	"net"
	"net/http"
	"strings"

	"admin-console/config"
)

// ClientIP honours X-Forwarded-For and X-Real-IP only from trusted proxies.
func ClientIP(r *http.Request, cfg *config.AppConfig) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	ip = strings.TrimSpace(ip)
	if cfg == nil || !isTrustedProxy(ip, cfg.Security.TrustedProxies) {
		return ip
	}
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if candidate := extractClientIPFromXFF(xff, cfg.Security.TrustedProxies); candidate != "" {
			return candidate
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if parsed := net.ParseIP(realIP); parsed != nil {
			return parsed.String()
		}
	}
	return ip
}

func IsSecureRequest(r *http.Request, cfg *config.AppConfig) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if cfg == nil {
		return false
	}
	if cfg.TLSEnabled {
		return true
	}
	remoteIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	if remoteIP == "" {
		remoteIP = strings.TrimSpace(r.RemoteAddr)
	}
	if !isTrustedProxy(strings.TrimSpace(remoteIP), cfg.Security.TrustedProxies) {
		return false
	}
	proto := strings.ToLower(strings.TrimSpace(strings.SplitN(r.Header.Get("X-Forwarded-Proto"), ",", 2)[0]))
	return proto == "https"
}

// extractClientIPFromXFF walks right to left and returns the first hop that
// is not one of our proxies.
func extractClientIPFromXFF(xff string, trusted []string) string {
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		parsed := net.ParseIP(strings.TrimSpace(parts[i]))
		if parsed == nil {
			continue
		}
		if val := parsed.String(); !isTrustedProxy(val, trusted) {
			return val
		}
	}
	return ""
}

func isTrustedProxy(ip string, trusted []string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, raw := range trusted {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if strings.Contains(val, "/") {
			if _, block, err := net.ParseCIDR(val); err == nil && block.Contains(parsed) {
				return true
			}
			continue
		}
		if parsed.Equal(net.ParseIP(val)) {
			return true
		}
	}
	return false
}
