package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestRedis starts a Redis container for the test.
// Skipped in -short mode or when no container runtime is available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container not available: %v", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err, "container host")

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err, "container port")

	client, err := OpenRedis(ctx, "redis://"+host+":"+port.Port()+"/0")
	require.NoError(t, err, "connect to redis")

	t.Cleanup(func() {
		client.Close()
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestOpenRedis_InvalidURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), "http://not-redis")
	assert.Error(t, err)
}

func TestRedisStore_Contract(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	assert.Equal(t, BackendRedis, store.Backend())
	testStoreContract(t, store)
}

func TestRedisStore_NoExpiry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	entry, err := NewEntry("3i_atlas", KindCurrent, map[string]string{"status": "active"}, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, entry))

	ttl, err := client.TTL(ctx, entry.Key().String()).Result()
	require.NoError(t, err)
	// -1 means the key exists without an expiry.
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestRedisStore_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	key := Key{ObjectID: "3i_atlas", Kind: KindCurrent}
	require.NoError(t, client.Set(ctx, key.String(), "not json", 0).Err())

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	var se *StoreError
	assert.ErrorAs(t, err, &se)
}

func TestRedisStore_ListIgnoresPrefixSiblings(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"atlas", "atlas:b"} {
		entry, err := NewEntry(id, KindCurrent, map[string]string{"id": id}, now)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, entry))
	}

	entries, err := store.List(ctx, "atlas")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "atlas", entries[0].ObjectID)
}

func TestRedisStore_ListSkipsForeignKeys(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	entry, err := NewEntry("atlas", KindHistorical, []int{1}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, entry))

	// Matches the object glob but is not an entry key; its value is not JSON.
	require.NoError(t, client.Set(ctx, KeyPrefix+":atlas:lock", "held", 0).Err())

	entries, err := store.List(ctx, "atlas")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindHistorical, entries[0].Kind)
}
