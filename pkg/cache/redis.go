package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore stores each entry as a JSON string under Key.String().
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store on top of redisClient.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// OpenRedis parses a redis:// URL, connects and pings.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get retrieves the entry stored under key.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			recordMiss(BackendRedis, key.Kind)
			return nil, ErrCacheMiss
		}
		return nil, storeError(BackendRedis, "get", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return nil, storeError(BackendRedis, "get", err)
	}

	recordHit(BackendRedis, key.Kind)
	return entry, nil
}

// Put writes entry without expiry, replacing any previous value.
func (s *RedisStore) Put(ctx context.Context, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return storeError(BackendRedis, "put", fmt.Errorf("marshal cache entry: %w", err))
	}

	if err := s.redis.Set(ctx, entry.Key().String(), data, 0).Err(); err != nil {
		return storeError(BackendRedis, "put", err)
	}

	recordWrite(BackendRedis, entry)
	return nil
}

// List scans the keys of objectID and loads them in one MGET.
func (s *RedisStore) List(ctx context.Context, objectID string) ([]*Entry, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, ObjectPattern(objectID), 100).Iterator()
	for iter.Next(ctx) {
		// The glob also matches ids that merely share the prefix and keys
		// written by other tools under the namespace.
		k, err := ParseKey(iter.Val())
		if err != nil || k.ObjectID != objectID {
			continue
		}
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, storeError(BackendRedis, "list", err)
	}

	out := make([]*Entry, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeError(BackendRedis, "list", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key vanished between SCAN and MGET.
			continue
		}
		entry, err := decodeEntry([]byte(raw))
		if err != nil {
			return nil, storeError(BackendRedis, "list", fmt.Errorf("key %s: %w", keys[i], err))
		}
		out = append(out, entry)
	}

	sortNewestFirst(out)
	return out, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return storeError(BackendRedis, "ping", err)
	}
	return nil
}

// Backend returns "redis".
func (s *RedisStore) Backend() string {
	return BackendRedis
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := entry.validate(); err != nil {
		return nil, err
	}
	return &entry, nil
}
