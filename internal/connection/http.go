package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autotrade/internal/resilience/circuitbreaker"
)

// defaultUserAgent imitates a mobile browser. Several market data endpoints
// reject requests with library user agents outright.
const defaultUserAgent = "Mozilla/5.0 (Linux; Android 6.0; Nexus 5 Build/MRA58N) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/73.0.3683.86 Mobile Safari/537.36"

// maxBodySnippet bounds the response excerpt carried inside a StatusError.
const maxBodySnippet = 256

// defaultHTTPTimeout is the total request timeout when none is configured.
const defaultHTTPTimeout = 60 * time.Second

// HTTPConfig holds the construction-time settings of an HTTPConnection.
type HTTPConfig struct {
	Config

	// BaseURL is the endpoint root all requests are resolved against.
	BaseURL string

	// Timeout is the total per-request timeout. Defaults to 60s.
	Timeout time.Duration

	// Headers are sent with every request, on top of the defaults.
	Headers map[string]string

	// Breaker overrides the circuit breaker settings. Zero value uses
	// circuitbreaker.DefaultConfig with the connection's name.
	Breaker circuitbreaker.Config

	// MaxBodySize bounds how many response bytes are read. Defaults to 8 MiB.
	MaxBodySize int64
}

// HTTPConnection is the base of all HTTP API connections. It owns one
// http.Client, applies the connection's default headers, classifies response
// statuses into transport fault kinds, and funnels every request through the
// circuit breaker and the call admission envelope.
type HTTPConnection struct {
	*Connection

	baseURL     string
	client      *http.Client
	headers     map[string]string
	breaker     *circuitbreaker.CircuitBreaker
	maxBodySize int64
}

// Request describes one HTTP call. Form and JSON are mutually exclusive
// bodies. Field and Weight select the call field consulted for admission; an
// empty Field skips quota accounting.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Form     url.Values
	JSON     any
	Headers  map[string]string
	Field    string
	Weight   int64
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// DecodeJSON unmarshals the response body into out.
func (r *Response) DecodeJSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// NewHTTP creates an HTTPConnection.
func NewHTTP(cfg HTTPConfig) (*HTTPConnection, error) {
	base, err := New(cfg.Config)
	if err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL must not be empty", ErrInvalidRequest)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", ErrInvalidRequest, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = 8 << 20
	}

	headers := map[string]string{
		// net/http negotiates gzip on its own; forcing Accept-Encoding here
		// would disable transparent decompression.
		"User-Agent": defaultUserAgent,
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg = circuitbreaker.DefaultConfig(cfg.Name)
	}

	return &HTTPConnection{
		Connection: base,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		headers:     headers,
		breaker:     circuitbreaker.New(breakerCfg),
		maxBodySize: maxBody,
	}, nil
}

// BaseURL returns the endpoint root.
func (c *HTTPConnection) BaseURL() string {
	return c.baseURL
}

// TargetURL resolves an endpoint against the base URL.
func (c *HTTPConnection) TargetURL(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Close releases idle transport connections and marks the connection closed.
func (c *HTTPConnection) Close() error {
	c.client.CloseIdleConnections()
	return c.Connection.Close()
}

// Request performs one HTTP call under the connection's admission envelope
// and circuit breaker. Responses whose status classifies as a transport
// fault return a *StatusError; since every fault kind matches ErrConnection,
// the reservation for a failed call is rolled back.
func (c *HTTPConnection) Request(ctx context.Context, req Request) (*Response, error) {
	return Call(ctx, c.Connection, req.Field, req.Weight, func(ctx context.Context) (*Response, error) {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.send(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return result.(*Response), nil
	})
}

// send builds, issues, and classifies one request. Called inside the breaker.
func (c *HTTPConnection) send(ctx context.Context, req Request) (*Response, error) {
	if req.Form != nil && req.JSON != nil {
		return nil, fmt.Errorf("%w: form and JSON bodies cannot both be set", ErrInvalidRequest)
	}

	method := strings.ToUpper(req.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: invalid method %q", ErrInvalidRequest, req.Method)
	}

	target := c.TargetURL(req.Endpoint)
	if len(req.Query) > 0 {
		target = target + "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("%w: encode JSON body: %v", ErrInvalidRequest, err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrInvalidRequest, err)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceNotAvailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrServiceNotAvailable, err)
	}

	if kind := ClassifyStatus(resp.StatusCode, string(raw)); kind != nil {
		snippet := string(raw)
		if len(snippet) > maxBodySnippet {
			snippet = snippet[:maxBodySnippet]
		}
		return nil, &StatusError{
			Connection: c.Name(),
			Status:     resp.StatusCode,
			Kind:       kind,
			Body:       snippet,
		}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   raw,
	}, nil
}
