// Package fetcher provides content fetching for headline summary enhancement.
package fetcher

import (
	"fmt"
	"net"
	"net/url"

	"autotrade/internal/usecase/watch"
)

// validateURL gates every outbound page request. Only http and https pass,
// and with denyPrivateIPs set the hostname is resolved so a public name
// cannot point the fetch at an internal address.
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", watch.ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme '%s' not allowed (only http/https)", watch.ErrInvalidURL, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", watch.ErrInvalidURL)
	}

	if !denyPrivateIPs {
		return nil
	}

	// Covers IP literals too; LookupIP short-circuits them without a DNS
	// query.
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", watch.ErrInvalidURL, hostname, err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname '%s' resolves to private IP %s", watch.ErrPrivateIP, hostname, ip)
		}
	}

	return nil
}

// isPrivateIP reports whether ip falls in a loopback (127.0.0.0/8, ::1),
// private (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16, fc00::/7), or
// link-local (169.254.0.0/16, fe80::/10) range.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
