package websearch

import (
	"net"
	"net/url"
	"strings"
)

// IsSafeURL reports whether a URL may be handed to the crawl sidecar.
// Only http(s) schemes are allowed; hostnames resolving to private,
// loopback, link-local or multicast addresses are rejected. DNS failures
// pass — the crawl itself will fail for those.
func IsSafeURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return false
	}

	switch strings.ToLower(hostname) {
	case "localhost", "localhost.localdomain", "0.0.0.0", "127.0.0.1", "::1":
		return false
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return !isBlockedIP(ip)
	}

	addrs, err := net.LookupIP(hostname)
	if err != nil {
		return true
	}
	for _, ip := range addrs {
		if isBlockedIP(ip) {
			return false
		}
	}
	return true
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}
