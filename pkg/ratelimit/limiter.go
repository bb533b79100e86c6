// Package ratelimit implements outbound request throttling for the Horizons
// client. JPL asks API consumers to keep request rates modest, so every
// upstream call takes a token from a shared bucket before it goes out.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for outbound throttling.
var (
	horizonsRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "horizons_rate_limit_waits_total",
		Help: "Total number of upstream requests that had to wait for a token",
	})

	horizonsRateLimitRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "horizons_rate_limit_rejections_total",
		Help: "Total number of upstream requests rejected because no token was available in time",
	})

	horizonsRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "horizons_rate_limit_wait_seconds",
		Help:    "Time spent waiting for an outbound token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// ErrThrottled is returned when a token cannot be obtained before the
// context deadline.
var ErrThrottled = errors.New("outbound request throttled")

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained outbound rate. Zero or negative disables limiting.
	RequestsPerSecond float64

	// Burst is the bucket size.
	Burst int
}

// DefaultConfig returns a conservative default for a public API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// Limiter gates outbound requests with a token bucket.
// A nil *Limiter allows everything.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter. Returns nil when limiting is disabled.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	if l.limiter.Allow() {
		return nil
	}

	horizonsRateLimitWaitsTotal.Inc()
	start := time.Now()

	if err := l.limiter.Wait(ctx); err != nil {
		horizonsRateLimitRejectionsTotal.Inc()
		l.logger.Warn().
			Err(err).
			Dur("waited", time.Since(start)).
			Msg("Outbound request throttled")
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}

	waited := time.Since(start)
	horizonsRateLimitWaitSeconds.Observe(waited.Seconds())
	l.logger.Debug().Dur("waited", waited).Msg("Outbound request delayed by rate limiter")

	return nil
}

// Limit returns the configured sustained rate, or rate.Inf when disabled.
func (l *Limiter) Limit() rate.Limit {
	if l == nil {
		return rate.Inf
	}
	return l.limiter.Limit()
}
