// Package upstream calls the treasury webservice on behalf of a dashboard
// user. Every call carries the user's pass-through Authorization header.
package upstream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
)

// maxResponseSize limits the response body size to prevent memory exhaustion.
// Invoice reports on large books run to tens of megabytes.
const maxResponseSize = 64 * 1024 * 1024

// Config describes where the webservice lives and how long calls may take.
type Config struct {
	BaseURL        string
	WebservicePath string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Client issues authenticated GET and POST calls to the webservice.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *telemetry.UpstreamMetrics
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records call metrics.
func WithMetrics(m *telemetry.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client. Requests are traced through otelhttp.
// Timeouts are applied per call class, so the HTTP client itself has none.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "upstream " + r.Method + " " + endpointOf(r.Context())
				}),
			),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BasicAuth builds the Authorization header value for a username and password.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// URL returns the absolute URL of endpoint.
func (c *Client) URL(endpoint string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.WebservicePath + endpoint
}

// Get calls endpoint with the read timeout and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, endpoint, credential string) (json.RawMessage, error) {
	return c.GetWithTimeout(ctx, endpoint, credential, c.cfg.ReadTimeout)
}

// GetWithTimeout is Get with an explicit timeout.
func (c *Client) GetWithTimeout(ctx context.Context, endpoint, credential string, timeout time.Duration) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, credential, nil, timeout)
}

// Post sends payload as JSON with the write timeout.
func (c *Client) Post(ctx context.Context, endpoint, credential string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to marshal %s payload: %w", endpoint, err)
	}
	return c.do(ctx, http.MethodPost, endpoint, credential, body, c.cfg.WriteTimeout)
}

// GetList calls an endpoint that returns a JSON array. A null or empty body
// is an empty list. A single object is wrapped into a one-element list; the
// webservice does this for one-row results on some installations, which is
// a contract defect and is logged and counted as such.
func (c *Client) GetList(ctx context.Context, endpoint, credential string) ([]json.RawMessage, error) {
	raw, err := c.Get(ctx, endpoint, credential)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &Error{Endpoint: endpoint, StatusCode: http.StatusOK, Body: excerpt(trimmed), Err: fmt.Errorf("%w: %v", ErrUnexpectedShape, err)}
		}
		return items, nil
	case '{':
		logger.LOr(ctx, c.logger).Warn("Upstream returned a single object where a list was expected",
			zap.String("endpoint", endpoint))
		c.metrics.RecordContractDefect(ctx, endpoint, "single_object")
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	default:
		c.metrics.RecordContractDefect(ctx, endpoint, "not_a_list")
		return nil, &Error{Endpoint: endpoint, StatusCode: http.StatusOK, Body: excerpt(trimmed), Err: ErrUnexpectedShape}
	}
}

type endpointKey struct{}

func endpointOf(ctx context.Context) string {
	if ep, ok := ctx.Value(endpointKey{}).(string); ok {
		return ep
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, endpoint, credential string, body []byte, timeout time.Duration) (json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, endpointKey{}, endpoint)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordCall(ctx, method, endpoint, 0, time.Since(start))
		return nil, &Error{Endpoint: endpoint, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	elapsed := time.Since(start)
	c.metrics.RecordCall(ctx, method, endpoint, resp.StatusCode, elapsed)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: reading body: %w", ErrUnavailable, err)}
	}

	logger.LOr(ctx, c.logger).Debug("Upstream call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("latency", elapsed))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: excerpt(data)}
	}
	return json.RawMessage(data), nil
}
