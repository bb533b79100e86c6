package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the cache-and-fallback orchestration.
var (
	// trackerResponses counts served responses by kind and where they came from.
	trackerResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_responses_total",
		Help: "Responses served by kind and origin (cached, live, stale, fallback, empty)",
	}, []string{"kind", "origin"})

	// trackerUpstreamFailures counts failed refreshes by kind and stage.
	trackerUpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_upstream_failures_total",
		Help: "Failed refreshes by kind and stage (fetch, parse, abandoned)",
	}, []string{"kind", "stage"})

	// trackerStoreErrors counts store failures that were absorbed.
	trackerStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_store_errors_total",
		Help: "Store errors treated as a miss or swallowed, by operation",
	}, []string{"operation"})

	// trackerCoalescedFetches counts callers that shared another caller's fetch.
	trackerCoalescedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_coalesced_fetches_total",
		Help: "Current-snapshot fetches shared between concurrent callers",
	})

	// trackerUpstreamStatus reports the last probe outcome (1 for the active state).
	trackerUpstreamStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_upstream_status",
		Help: "Last upstream probe result; the gauge of the observed state is 1",
	}, []string{"status"})
)

const (
	originCached   = "cached"
	originLive     = "live"
	originStale    = "stale"
	originFallback = "fallback"
	originEmpty    = "empty"

	stageFetch     = "fetch"
	stageParse     = "parse"
	stageAbandoned = "abandoned"
)

func recordUpstreamStatus(status UpstreamStatus) {
	for _, s := range []UpstreamStatus{UpstreamActive, UpstreamDegraded, UpstreamDown} {
		v := 0.0
		if s == status {
			v = 1
		}
		trackerUpstreamStatus.WithLabelValues(string(s)).Set(v)
	}
}
