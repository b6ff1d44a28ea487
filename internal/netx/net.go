// Package netx provides small networking helpers shared by the HTTP layer.
package netx

import (
	"net"
	"strings"
)

// ClientIP normalizes an http.Request RemoteAddr ("host:port", bare host, or
// bracketed IPv6) into the bare IP string recorded in audit entries and
// signature rows. Unparseable input is returned trimmed rather than dropped
// so the audit trail never loses the raw value.
func ClientIP(remoteAddr string) string {
	addr := strings.TrimSpace(remoteAddr)
	if addr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	if ip := net.ParseIP(strings.Trim(addr, "[]")); ip != nil {
		return ip.String()
	}

	return addr
}
