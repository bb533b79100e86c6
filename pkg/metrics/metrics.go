// Package metrics exposes the Prometheus registry used by the comet tracker.
// Metrics are defined in their respective packages (horizons, ratelimit,
// dispatch, cache, tracker, api) to maintain modularity and avoid circular
// dependencies; this package serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Upstream Metrics (pkg/horizons):
//   - horizons_requests_total{operation, status} (Counter): Requests by operation (ephemeris, probe) and status
//   - horizons_request_duration_seconds{operation} (Histogram): Request duration
//   - horizons_errors_total{class} (Counter): Errors by class (client, server, network, timeout, rate_limited)
//
// Outbound Limiter Metrics (pkg/ratelimit):
//   - horizons_rate_limit_waits_total (Counter): Calls that had to wait for a token
//   - horizons_rate_limit_rejections_total (Counter): Calls whose context ended while waiting
//   - horizons_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Dispatch Metrics (pkg/dispatch):
//   - dispatch_inflight_tasks (Gauge): Tasks holding a worker slot
//   - dispatch_tasks_total{name, result} (Counter): Tasks by name and result (ok, error, rejected)
//   - dispatch_task_duration_seconds{name} (Histogram): Task run time
//
// Cache Metrics (pkg/cache):
//   - comet_cache_hits_total{backend, kind} (Counter): Reads that found an entry
//   - comet_cache_misses_total{backend, kind} (Counter): Reads that found nothing
//   - comet_cache_writes_total{backend, kind} (Counter): Upserts
//   - comet_cache_payload_bytes{backend, kind} (Gauge): Payload size of the last write
//   - comet_cache_errors_total{backend, operation} (Counter): Store errors
//
// Orchestration Metrics (pkg/tracker):
//   - tracker_responses_total{kind, origin} (Counter): Responses by origin (cached, live, stale, fallback, empty)
//   - tracker_upstream_failures_total{kind, stage} (Counter): Failed refreshes (fetch, parse, abandoned)
//   - tracker_store_errors_total{operation} (Counter): Store errors absorbed (read, write)
//   - tracker_coalesced_fetches_total (Counter): Fetches shared between callers
//   - tracker_upstream_status{status} (Gauge): Last probe result
//
// HTTP Metrics (internal/api):
//   - http_requests_total{route, method, status} (Counter): Requests served
//   - http_request_duration_seconds{route} (Histogram): Handler latency
//
// Example Prometheus Queries:
//
//   # Share of current snapshots served without live data
//   sum(rate(tracker_responses_total{kind="current",origin=~"stale|fallback"}[5m])) /
//   sum(rate(tracker_responses_total{kind="current"}[5m]))
//
//   # Upstream error rate by class
//   rate(horizons_errors_total[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(horizons_request_duration_seconds_bucket[5m]))
//
//   # Upstream down
//   tracker_upstream_status{status="down"} == 1
