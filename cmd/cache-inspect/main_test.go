package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/comet-tracker/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store cache.Store, kind cache.Kind, payload any, at time.Time) {
	t.Helper()
	e, err := cache.NewEntry("3i_atlas", kind, payload, at)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), e))
}

func TestInspect(t *testing.T) {
	now := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore()
	seed(t, store, cache.KindHistorical, map[string]any{"hours": 24}, now.Add(-2*time.Hour))
	seed(t, store, cache.KindCurrent, map[string]any{"id": "3i_atlas"}, now.Add(-90*time.Second))

	var buf bytes.Buffer
	require.NoError(t, inspect(context.Background(), &buf, store, "3i_atlas", 3, false, now))

	want := "backend: memory\n" +
		"3i_atlas entries: 2\n" +
		"\nLatest 2 entries:\n" +
		"- comet:cache:3i_atlas:current written_at=2025-10-18T11:58:30Z age=1m30s bytes=17\n" +
		"- comet:cache:3i_atlas:historical written_at=2025-10-18T10:00:00Z age=2h0m0s bytes=12\n"
	assert.Equal(t, want, buf.String())
}

func TestInspect_LimitAndPayload(t *testing.T) {
	now := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore()
	seed(t, store, cache.KindHistorical, map[string]any{"hours": 24}, now.Add(-2*time.Hour))
	seed(t, store, cache.KindCurrent, map[string]any{"id": "3i_atlas"}, now.Add(-time.Minute))

	var buf bytes.Buffer
	require.NoError(t, inspect(context.Background(), &buf, store, "3i_atlas", 1, true, now))

	out := buf.String()
	assert.Contains(t, out, "Latest 1 entries:")
	assert.Contains(t, out, "comet:cache:3i_atlas:current")
	assert.NotContains(t, out, "comet:cache:3i_atlas:historical")
	assert.Contains(t, out, `"id": "3i_atlas"`)
}

func TestInspect_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, inspect(context.Background(), &buf, cache.NewMemoryStore(), "3i_atlas", 3, false, time.Now()))

	assert.Equal(t, "backend: memory\n3i_atlas entries: 0\n", buf.String())
}
