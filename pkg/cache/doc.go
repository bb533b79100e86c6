// Package cache persists the last known ephemeris records per tracked object.
//
// Each object has at most two entries, one per Kind:
//
//   - current: the latest Snapshot
//   - historical: the latest HistoricalSeries
//
// Writes are upserts. Entries carry their write time and are never deleted or
// expired by the backend; callers decide freshness at read time with
// Entry.IsFresh. A stale entry stays readable so it can be served when the
// upstream is down.
//
// # Backends
//
// Three Store implementations are provided:
//
//   - RedisStore: one key per entry (comet:cache:{objectId}:{kind}) holding the
//     JSON encoded Entry, written without TTL
//   - PostgresStore: table comet_cache_entries keyed by (object_id, kind);
//     EnsureSchema creates the table and its index
//   - MemoryStore: process-local map for development and tests
//
// Open selects one of them by name and, for Postgres, ensures the schema.
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redisClient)
//
//	entry, err := cache.NewEntry("3i_atlas", cache.KindCurrent, snapshot, time.Now())
//	if err != nil {
//		return err
//	}
//	if err := store.Put(ctx, entry); err != nil {
//		return err
//	}
//
//	entry, err = store.Get(ctx, cache.Key{ObjectID: "3i_atlas", Kind: cache.KindCurrent})
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// nothing stored yet
//	}
//
// # Metrics
//
//   - comet_cache_hits_total{backend,kind}
//   - comet_cache_misses_total{backend,kind}
//   - comet_cache_writes_total{backend,kind}
//   - comet_cache_payload_bytes{backend,kind}
//   - comet_cache_errors_total{backend,operation}
package cache
