package connection

import (
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for the connection layer. ErrConnection is the base kind:
// every transport fault matches it through errors.Is, and it seeds each
// connection's tolerated set, so a call failing with any of these kinds rolls
// its reservation back instead of counting against the quota.
var (
	// ErrConnection is the base kind of all transport faults.
	ErrConnection = errors.New("connection error")

	// ErrInvalidRequest indicates a malformed request that was never sent.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrConnection)

	// ErrServiceError indicates the endpoint rejected the request payload.
	ErrServiceError = fmt.Errorf("%w: service error", ErrConnection)

	// ErrDDoSProtection indicates the endpoint's anti-abuse layer blocked the call.
	ErrDDoSProtection = fmt.Errorf("%w: ddos protection triggered", ErrConnection)

	// ErrServiceNotAvailable indicates the endpoint could not serve the call.
	ErrServiceNotAvailable = fmt.Errorf("%w: service not available", ErrConnection)

	// ErrRequestTimeout indicates the endpoint or a gateway timed the call out.
	ErrRequestTimeout = fmt.Errorf("%w: request timeout", ErrConnection)

	// ErrAuthentication indicates rejected or missing credentials.
	ErrAuthentication = fmt.Errorf("%w: authentication failed", ErrConnection)

	// ErrClosed indicates a call against a connection after Close.
	ErrClosed = errors.New("connection closed")
)

// statusKinds maps HTTP status codes to transport fault kinds.
var statusKinds = map[int]error{
	422: ErrServiceError,
	418: ErrDDoSProtection,
	429: ErrDDoSProtection,
	400: ErrServiceNotAvailable,
	403: ErrServiceNotAvailable,
	404: ErrServiceNotAvailable,
	405: ErrServiceNotAvailable,
	409: ErrServiceNotAvailable,
	500: ErrServiceNotAvailable,
	501: ErrServiceNotAvailable,
	502: ErrServiceNotAvailable,
	503: ErrServiceNotAvailable,
	520: ErrServiceNotAvailable,
	521: ErrServiceNotAvailable,
	522: ErrServiceNotAvailable,
	525: ErrServiceNotAvailable,
	526: ErrServiceNotAvailable,
	530: ErrServiceNotAvailable,
	408: ErrRequestTimeout,
	504: ErrRequestTimeout,
	401: ErrAuthentication,
	511: ErrAuthentication,
}

// protectionPattern detects anti-abuse interstitials hiding behind generic
// availability statuses.
var protectionPattern = regexp.MustCompile(`(?i)(cloudflare|incapsula|overload|ddos)`)

// ClassifyStatus maps an HTTP status code (and a snippet of the response
// body) to a transport fault kind. It returns nil for statuses that are not
// faults. A generic availability status whose body mentions an anti-abuse
// vendor is upgraded to ErrDDoSProtection.
func ClassifyStatus(status int, body string) error {
	kind, ok := statusKinds[status]
	if !ok {
		return nil
	}
	if kind == ErrServiceNotAvailable && protectionPattern.MatchString(body) {
		return ErrDDoSProtection
	}
	return kind
}

// StatusError reports an HTTP response that classified as a transport fault.
// It unwraps to its Kind, so errors.Is sees both the specific kind and
// ErrConnection.
type StatusError struct {
	Connection string
	Status     int
	Kind       error
	Body       string // truncated response snippet for diagnostics
}

// Error returns a formatted message naming the connection, status, and kind.
func (e *StatusError) Error() string {
	return fmt.Sprintf("connection [%s] HTTP status exception: code %d (%v)", e.Connection, e.Status, e.Kind)
}

// Unwrap exposes the fault kind for errors.Is chains.
func (e *StatusError) Unwrap() error {
	return e.Kind
}

// ClosedError reports a call issued after the connection was closed.
type ClosedError struct {
	Connection string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("connection [%s] is closed", e.Connection)
}

func (e *ClosedError) Is(target error) bool {
	return target == ErrClosed
}
