// Package tracker serves comet ephemeris data from a persistent cache, refreshing
// it from Horizons when stale and degrading to stale or static data when the
// upstream cannot deliver.
//
// Current snapshots never fail outward: the caller always receives a Snapshot,
// tagged live, cached, stale or fallback. Historical series are best effort and
// come back empty on failure.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/comet-tracker/pkg/cache"
	"github.com/Sternrassler/comet-tracker/pkg/dispatch"
	"github.com/Sternrassler/comet-tracker/pkg/ephemeris"
	"github.com/Sternrassler/comet-tracker/pkg/horizons"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Upstream is the ephemeris provider. *horizons.Client implements it.
type Upstream interface {
	FetchEphemeris(ctx context.Context, q horizons.Query) (string, error)
	Probe(ctx context.Context) (int, error)
}

// UpstreamStatus is the coarse reachability of the upstream.
type UpstreamStatus string

const (
	UpstreamActive   UpstreamStatus = "active"
	UpstreamDegraded UpstreamStatus = "degraded"
	UpstreamDown     UpstreamStatus = "down"
)

// StatusReport answers the status endpoint.
type StatusReport struct {
	Status UpstreamStatus `json:"status"`

	// LastUpdate is the write time of the current snapshot, nil if none is stored.
	LastUpdate *time.Time `json:"lastUpdate"`

	Source string `json:"source"`
}

// DefaultSourceName is reported by Status.
const DefaultSourceName = "JPL Horizons"

// currentWindowHalf is half of the one-minute window requested for the current snapshot.
const currentWindowHalf = 30 * time.Second

const (
	taskCurrent    = "current"
	taskHistorical = "historical"
)

// Config holds service configuration.
type Config struct {
	// Object is the tracked body.
	Object ephemeris.TrackedObject

	// FreshnessWindow is how long a stored current snapshot is served without
	// contacting the upstream.
	FreshnessWindow time.Duration

	// Policy decides how unparsable values in the current row are handled.
	Policy ephemeris.PlaceholderPolicy

	// CoalesceFetches lets concurrent callers share one upstream fetch of the
	// current snapshot.
	CoalesceFetches bool

	// Quantities overrides the Horizons quantity list when non-empty.
	Quantities string

	// CurrentTimeout and HistoryTimeout bound the upstream call of each path.
	CurrentTimeout time.Duration
	HistoryTimeout time.Duration

	// SourceName is reported by Status.
	SourceName string
}

// DefaultConfig returns the configuration for the default tracked object.
func DefaultConfig() Config {
	return Config{
		Object:          ephemeris.Atlas(),
		FreshnessWindow: ephemeris.UpdateInterval,
		Policy:          ephemeris.PolicyStrict,
		Quantities:      horizons.DefaultQuantities,
		CurrentTimeout:  30 * time.Second,
		HistoryTimeout:  60 * time.Second,
		SourceName:      DefaultSourceName,
	}
}

// Service is the cache-and-fallback orchestrator for one tracked object.
type Service struct {
	upstream Upstream
	store    cache.Store
	pool     *dispatch.Pool
	config   Config
	parser   ephemeris.Parser
	group    singleflight.Group
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a service. Zero config values take their defaults.
func New(upstream Upstream, store cache.Store, pool *dispatch.Pool, cfg Config) (*Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("dispatch pool is required")
	}

	defaults := DefaultConfig()
	if cfg.Object.ID == "" {
		cfg.Object = defaults.Object
	}
	if cfg.Object.HorizonsCommand == "" {
		return nil, fmt.Errorf("object %q has no horizons command", cfg.Object.ID)
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = defaults.FreshnessWindow
	}
	if cfg.Policy == "" {
		cfg.Policy = defaults.Policy
	}
	if cfg.Quantities == "" {
		cfg.Quantities = defaults.Quantities
	}
	if cfg.CurrentTimeout <= 0 {
		cfg.CurrentTimeout = defaults.CurrentTimeout
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = defaults.HistoryTimeout
	}
	if cfg.SourceName == "" {
		cfg.SourceName = defaults.SourceName
	}

	return &Service{
		upstream: upstream,
		store:    store,
		pool:     pool,
		config:   cfg,
		parser:   ephemeris.NewParser(cfg.Object, cfg.Policy),
		now:      time.Now,
		logger: log.With().
			Str("component", "tracker").
			Str("object_id", cfg.Object.ID).
			Logger(),
	}, nil
}

// SetClock replaces the time source (for testing).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Object returns the tracked object.
func (s *Service) Object() ephemeris.TrackedObject {
	return s.config.Object
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

// CurrentSnapshot returns the current observation. It never fails: in order of
// preference the result is a fresh cached entry, a live fetch, the last stored
// snapshot marked stale, or the static fallback.
func (s *Service) CurrentSnapshot(ctx context.Context) ephemeris.Snapshot {
	now := s.now()
	key := s.key(cache.KindCurrent)

	if entry := s.read(ctx, key); entry != nil && entry.IsFresh(now, s.config.FreshnessWindow) {
		var snap ephemeris.Snapshot
		err := entry.Decode(&snap)
		if err == nil {
			snap.Source = ephemeris.SourceCached
			trackerResponses.WithLabelValues(taskCurrent, originCached).Inc()
			s.logger.Debug().
				Dur("age", entry.Age(now)).
				Msg("Serving cached snapshot")
			return snap
		}
		s.logger.Warn().Err(err).Msg("Stored snapshot unreadable; refreshing")
	}

	snap, err := s.fetchCurrent(ctx)
	if err == nil {
		trackerResponses.WithLabelValues(taskCurrent, originLive).Inc()
		return snap
	}
	if errors.Is(err, dispatch.ErrAbandoned) {
		trackerUpstreamFailures.WithLabelValues(taskCurrent, stageAbandoned).Inc()
	}
	s.logger.Warn().Err(err).Msg("Current snapshot refresh failed; degrading")

	if entry := s.read(ctx, key); entry != nil {
		var stale ephemeris.Snapshot
		err := entry.Decode(&stale)
		if err == nil {
			stale.Status = ephemeris.StatusStale
			trackerResponses.WithLabelValues(taskCurrent, originStale).Inc()
			s.logger.Info().
				Time("written_at", entry.WrittenAt).
				Msg("Serving stale snapshot")
			return stale
		}
		s.logger.Warn().Err(err).Msg("Stored snapshot unreadable; using fallback")
	}

	trackerResponses.WithLabelValues(taskCurrent, originFallback).Inc()
	s.logger.Warn().Msg("No stored snapshot; serving static fallback")
	return ephemeris.Fallback(s.config.Object, now)
}

// fetchCurrent runs the refresh on the dispatch pool, optionally shared between
// concurrent callers.
func (s *Service) fetchCurrent(ctx context.Context) (ephemeris.Snapshot, error) {
	if !s.config.CoalesceFetches {
		return dispatch.Do(ctx, s.pool, taskCurrent, s.refreshCurrent)
	}

	ch := s.group.DoChan(s.key(cache.KindCurrent).String(), func() (any, error) {
		// The shared fetch must not die with whichever caller started it.
		return dispatch.Do(context.WithoutCancel(ctx), s.pool, taskCurrent, s.refreshCurrent)
	})

	select {
	case r := <-ch:
		if r.Shared {
			trackerCoalescedFetches.Inc()
		}
		if r.Err != nil {
			return ephemeris.Snapshot{}, r.Err
		}
		return r.Val.(ephemeris.Snapshot), nil
	case <-ctx.Done():
		return ephemeris.Snapshot{}, fmt.Errorf("%w: %v", dispatch.ErrAbandoned, ctx.Err())
	}
}

// refreshCurrent fetches a one-minute window around now, parses it and stores
// the result. It runs on a pool worker, detached from the caller.
func (s *Service) refreshCurrent(ctx context.Context) (ephemeris.Snapshot, error) {
	now := s.now()

	raw, err := s.upstream.FetchEphemeris(ctx, horizons.Query{
		ObjectID:   s.config.Object.HorizonsCommand,
		Start:      now.Add(-currentWindowHalf),
		Stop:       now.Add(currentWindowHalf),
		StepSize:   horizons.StepMinute,
		Quantities: s.config.Quantities,
		Timeout:    s.config.CurrentTimeout,
	})
	if err != nil {
		trackerUpstreamFailures.WithLabelValues(taskCurrent, stageFetch).Inc()
		return ephemeris.Snapshot{}, fmt.Errorf("fetch current ephemeris: %w", err)
	}

	snap, err := s.parser.Current(raw, now)
	if err != nil {
		trackerUpstreamFailures.WithLabelValues(taskCurrent, stageParse).Inc()
		return ephemeris.Snapshot{}, fmt.Errorf("parse current ephemeris: %w", err)
	}
	snap.Status = ephemeris.StatusActive
	snap.Source = ephemeris.SourceLive

	s.write(ctx, cache.KindCurrent, snap, now)
	return snap, nil
}

// HistoricalSeries returns samples of the trailing window of hours, ascending
// with no duplicate timestamps. Any failure yields an empty, non-nil slice;
// stored series are never served once they no longer qualify as a hit.
func (s *Service) HistoricalSeries(ctx context.Context, hours int) []ephemeris.Sample {
	if hours < ephemeris.MinHistoryHours || hours > ephemeris.MaxHistoryHours {
		return []ephemeris.Sample{}
	}

	now := s.now()
	window := time.Duration(hours) * time.Hour
	from := now.Add(-window)
	key := s.key(cache.KindHistorical)

	if entry := s.read(ctx, key); entry != nil && entry.IsFresh(now, window+time.Hour) {
		var series ephemeris.HistoricalSeries
		err := entry.Decode(&series)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("Stored series unreadable; refreshing")
		case !series.Covers(hours):
			s.logger.Debug().
				Int("cached_hours", series.Hours).
				Int("hours", hours).
				Msg("Stored series too short; refreshing")
		default:
			trackerResponses.WithLabelValues(taskHistorical, originCached).Inc()
			return series.Since(from)
		}
	}

	series, err := dispatch.Do(ctx, s.pool, taskHistorical, func(ctx context.Context) (ephemeris.HistoricalSeries, error) {
		return s.refreshHistorical(ctx, hours, from, now)
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrAbandoned) {
			trackerUpstreamFailures.WithLabelValues(taskHistorical, stageAbandoned).Inc()
		}
		trackerResponses.WithLabelValues(taskHistorical, originEmpty).Inc()
		s.logger.Warn().Err(err).Int("hours", hours).Msg("Historical refresh failed; returning empty series")
		return []ephemeris.Sample{}
	}

	trackerResponses.WithLabelValues(taskHistorical, originLive).Inc()
	return series.Samples
}

func (s *Service) refreshHistorical(ctx context.Context, hours int, from, now time.Time) (ephemeris.HistoricalSeries, error) {
	raw, err := s.upstream.FetchEphemeris(ctx, horizons.Query{
		ObjectID:   s.config.Object.HorizonsCommand,
		Start:      from,
		Stop:       now,
		StepSize:   horizons.StepHour,
		Quantities: s.config.Quantities,
		Timeout:    s.config.HistoryTimeout,
	})
	if err != nil {
		trackerUpstreamFailures.WithLabelValues(taskHistorical, stageFetch).Inc()
		return ephemeris.HistoricalSeries{}, fmt.Errorf("fetch historical ephemeris: %w", err)
	}

	samples, err := s.parser.Historical(raw)
	if err != nil {
		trackerUpstreamFailures.WithLabelValues(taskHistorical, stageParse).Inc()
		return ephemeris.HistoricalSeries{}, fmt.Errorf("parse historical ephemeris: %w", err)
	}

	series := ephemeris.HistoricalSeries{Hours: hours, Samples: samples}
	s.write(ctx, cache.KindHistorical, series, now)
	return series, nil
}

// Status probes the upstream and reports when the current snapshot was last
// stored. The probe and the store read run concurrently.
func (s *Service) Status(ctx context.Context) StatusReport {
	report := StatusReport{Source: s.config.SourceName}

	var g errgroup.Group
	g.Go(func() error {
		code, err := s.upstream.Probe(ctx)
		switch {
		case err != nil:
			report.Status = UpstreamDown
			s.logger.Warn().Err(err).Msg("Upstream probe failed")
		case code != http.StatusOK:
			report.Status = UpstreamDegraded
			s.logger.Warn().Int("status_code", code).Msg("Upstream probe returned non-200")
		default:
			report.Status = UpstreamActive
		}
		return nil
	})
	g.Go(func() error {
		if entry := s.read(ctx, s.key(cache.KindCurrent)); entry != nil {
			written := entry.WrittenAt
			report.LastUpdate = &written
		}
		return nil
	})
	_ = g.Wait()

	recordUpstreamStatus(report.Status)
	return report
}

func (s *Service) key(kind cache.Kind) cache.Key {
	return cache.Key{ObjectID: s.config.Object.ID, Kind: kind}
}

// read returns the stored entry, or nil on a miss. Store errors are logged and
// treated as a miss.
func (s *Service) read(ctx context.Context, key cache.Key) *cache.Entry {
	entry, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		return entry
	case errors.Is(err, cache.ErrCacheMiss):
		return nil
	default:
		trackerStoreErrors.WithLabelValues("read").Inc()
		s.logger.Warn().
			Err(err).
			Str("kind", string(key.Kind)).
			Str("backend", s.store.Backend()).
			Msg("Cache read failed; treating as miss")
		return nil
	}
}

// write upserts payload. Failures are logged and swallowed.
func (s *Service) write(ctx context.Context, kind cache.Kind, payload any, now time.Time) {
	entry, err := cache.NewEntry(s.config.Object.ID, kind, payload, now)
	if err == nil {
		err = s.store.Put(ctx, entry)
	}
	if err != nil {
		trackerStoreErrors.WithLabelValues("write").Inc()
		s.logger.Warn().
			Err(err).
			Str("kind", string(kind)).
			Str("backend", s.store.Backend()).
			Msg("Cache write failed")
		return
	}

	s.logger.Debug().
		Str("kind", string(kind)).
		Time("written_at", entry.WrittenAt).
		Msg("Cache updated")
}
