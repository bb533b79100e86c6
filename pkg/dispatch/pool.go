// Package dispatch runs upstream calls on a bounded set of worker slots,
// off the request goroutine.
//
// A task runs on a context detached from the caller: if the caller goes away
// the task keeps running until it finishes or hits the pool timeout, so its
// side effects (such as a cache write) still happen. The fixed timeout is the
// only bound on task duration.
//
// Example usage:
//
//	pool := dispatch.NewPool(dispatch.DefaultConfig())
//	snap, err := dispatch.Do(ctx, pool, "current", func(ctx context.Context) (Snapshot, error) {
//		return fetchAndStore(ctx)
//	})
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for task dispatch.
var (
	dispatchInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_inflight_tasks",
		Help: "Number of tasks currently holding a worker slot",
	})

	dispatchTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_tasks_total",
		Help: "Total dispatched tasks by name and result",
	}, []string{"name", "result"})

	dispatchTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_task_duration_seconds",
		Help:    "Task run time by name",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"name"})
)

// ErrAbandoned is returned to a caller whose context ended before its task
// finished. The task itself keeps running.
var ErrAbandoned = errors.New("caller abandoned task")

// Config holds pool configuration.
type Config struct {
	// MaxConcurrency is the number of worker slots.
	MaxConcurrency int

	// Timeout bounds each task.
	Timeout time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        60 * time.Second,
	}
}

// Pool is a bounded task executor.
type Pool struct {
	slots  chan struct{}
	config Config
	logger zerolog.Logger
}

// NewPool creates a pool, applying defaults for non-positive values.
func NewPool(config Config) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &Pool{
		slots:  make(chan struct{}, config.MaxConcurrency),
		config: config,
		logger: log.With().Str("component", "dispatch").Logger(),
	}
}

// Config returns the effective configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Task is a unit of work run by the pool.
type Task[T any] func(ctx context.Context) (T, error)

type result[T any] struct {
	value T
	err   error
}

// Do waits for a worker slot, runs task in a worker goroutine and returns its
// result. Waiting for a slot respects ctx; once started, the task is not
// cancelled by ctx.
func Do[T any](ctx context.Context, p *Pool, name string, task Task[T]) (T, error) {
	var zero T

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		dispatchTasksTotal.WithLabelValues(name, "rejected").Inc()
		return zero, fmt.Errorf("%w: waiting for worker slot: %v", ErrAbandoned, ctx.Err())
	}

	done := make(chan result[T], 1)
	dispatchInflight.Inc()

	go func() {
		start := time.Now()
		defer func() {
			<-p.slots
			dispatchInflight.Dec()
			dispatchTaskDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}()

		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.Timeout)
		defer cancel()

		value, err := task(taskCtx)
		if err != nil {
			dispatchTasksTotal.WithLabelValues(name, "error").Inc()
		} else {
			dispatchTasksTotal.WithLabelValues(name, "ok").Inc()
		}
		done <- result[T]{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		p.logger.Debug().
			Str("task", name).
			Err(ctx.Err()).
			Msg("Caller left before task completed; task continues in background")
		return zero, fmt.Errorf("%w: %v", ErrAbandoned, ctx.Err())
	}
}
