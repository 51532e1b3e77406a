package entity

import (
	"fmt"
	"net"
	"net/url"
)

// maxURLLength bounds source and headline URLs. Longer values are almost
// always paste accidents and would bloat notification payloads.
const maxURLLength = 2048

// ValidateURL checks that rawURL is a well-formed http or https URL that the
// watcher may poll. Hosts resolving to loopback, link-local, or private
// ranges are rejected: source URLs come from operator-editable configuration,
// and a hostile entry must not be able to probe the internal network.
// Resolution failures do not block validation here; the fetch path
// re-validates every hop at request time.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url is not parseable: %v", err),
		}
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	ips, err := net.LookupIP(parsed.Hostname())
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return &ValidationError{
				Field:   "url",
				Message: "url cannot point to private network",
			}
		}
	}

	return nil
}

// isPrivateIP reports whether ip falls in a range the watcher must never
// reach: loopback, RFC 1918 and unique-local space, and link-local ranges
// including the cloud metadata address.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
