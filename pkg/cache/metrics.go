package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend and kind
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_cache_hits_total",
			Help: "Total number of cache reads that found an entry",
		},
		[]string{"backend", "kind"},
	)

	// CacheMisses tracks cache misses by backend and kind
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_cache_misses_total",
			Help: "Total number of cache reads that found no entry",
		},
		[]string{"backend", "kind"},
	)

	// CacheWrites tracks successful upserts
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_cache_writes_total",
			Help: "Total number of cache entries written",
		},
		[]string{"backend", "kind"},
	)

	// CachePayloadSize tracks the payload size of the last written entry
	CachePayloadSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "comet_cache_payload_bytes",
			Help: "Payload size of the most recently written entry in bytes",
		},
		[]string{"backend", "kind"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "put", "list", "ping"
	)
)

func recordHit(backend string, kind Kind) {
	CacheHits.WithLabelValues(backend, string(kind)).Inc()
}

func recordMiss(backend string, kind Kind) {
	CacheMisses.WithLabelValues(backend, string(kind)).Inc()
}

func recordWrite(backend string, e *Entry) {
	CacheWrites.WithLabelValues(backend, string(e.Kind)).Inc()
	CachePayloadSize.WithLabelValues(backend, string(e.Kind)).Set(float64(len(e.Payload)))
}
