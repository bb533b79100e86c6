// Package horizons provides the JPL Horizons ephemeris client. It issues a
// single GET per call and returns the raw text payload; caching, parsing and
// retry policy belong to the caller.
package horizons

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/comet-tracker/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Horizons client operations.
var (
	horizonsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizons_requests_total",
		Help: "Total Horizons requests by operation and status",
	}, []string{"operation", "status"})

	horizonsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "horizons_request_duration_seconds",
		Help:    "Horizons request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	horizonsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizons_errors_total",
		Help: "Total Horizons errors by class",
	}, []string{"class"})
)

const (
	operationEphemeris = "ephemeris"
	operationProbe     = "probe"

	// maxBodyBytes caps how much of an ephemeris response is read.
	maxBodyBytes = 8 << 20
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Horizons API.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a single ephemeris call.
	Timeout time.Duration

	// ProbeTimeout bounds a reachability probe.
	ProbeTimeout time.Duration

	// Limiter throttles outbound calls. Nil disables throttling.
	Limiter *ratelimit.Limiter
}

// DefaultConfig returns a default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    userAgent,
		Timeout:      30 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

// Client is the Horizons API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Horizons client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{},
		config:     cfg,
		logger:     log.With().Str("component", "horizons").Logger(),
	}, nil
}

// FetchEphemeris performs one ephemeris request and returns the raw text.
// Failures are returned as *TransportError; invalid queries wrap ErrInvalidQuery.
func (c *Client) FetchEphemeris(ctx context.Context, q Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	timeout := c.config.Timeout
	if q.Timeout > 0 {
		timeout = q.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	defer func() {
		horizonsRequestDuration.WithLabelValues(operationEphemeris).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.config.Limiter.Wait(ctx); err != nil {
		horizonsErrorsTotal.WithLabelValues(string(ErrorClassRateLimited)).Inc()
		horizonsRequestsTotal.WithLabelValues(operationEphemeris, "rate_limited").Inc()
		return "", &TransportError{
			Class:   ErrorClassRateLimited,
			Message: "outbound limiter refused request",
			Err:     err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = q.Values().Encode()
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/plain")

	c.logger.Debug().
		Str("object_id", q.ObjectID).
		Time("start", q.Start).
		Time("stop", q.Stop).
		Str("step", q.StepSize).
		Msg("Requesting ephemeris")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportFailure(operationEphemeris, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusFailure(operationEphemeris, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", c.transportFailure(operationEphemeris, fmt.Errorf("read response body: %w", err))
	}

	horizonsRequestsTotal.WithLabelValues(operationEphemeris, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Str("object_id", q.ObjectID).
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("Ephemeris received")

	return string(body), nil
}

// Probe checks upstream reachability. It returns the HTTP status code of a
// plain GET against the base URL, or a *TransportError when no response arrived.
// The body is discarded.
func (c *Client) Probe(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	startTime := time.Now()
	defer func() {
		horizonsRequestDuration.WithLabelValues(operationProbe).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.transportFailure(operationProbe, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	horizonsRequestsTotal.WithLabelValues(operationProbe, strconv.Itoa(resp.StatusCode)).Inc()
	return resp.StatusCode, nil
}

// transportFailure wraps a network-level error.
func (c *Client) transportFailure(operation string, err error) *TransportError {
	class := classifyError(err)
	horizonsErrorsTotal.WithLabelValues(string(class)).Inc()
	horizonsRequestsTotal.WithLabelValues(operation, string(class)).Inc()

	c.logger.Warn().
		Err(err).
		Str("operation", operation).
		Str("error_class", string(class)).
		Msg("Horizons request failed")

	return &TransportError{
		Class:   class,
		Timeout: class == ErrorClassTimeout,
		Message: "request failed",
		Err:     err,
	}
}

// statusFailure wraps a non-200 response.
func (c *Client) statusFailure(operation string, resp *http.Response) *TransportError {
	class := classifyStatus(resp.StatusCode)
	horizonsErrorsTotal.WithLabelValues(string(class)).Inc()
	horizonsRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Warn().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Horizons returned non-success status")

	return &TransportError{
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    resp.Status,
	}
}

// classifyError categorizes a transport error.
func classifyError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// classifyStatus categorizes a non-200 status code.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimited
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}
