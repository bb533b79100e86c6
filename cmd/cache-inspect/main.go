// Command cache-inspect prints the number of cached entries of a tracked
// object and the most recently written ones.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/comet-tracker/internal/config"
	"github.com/Sternrassler/comet-tracker/pkg/cache"
	"github.com/Sternrassler/comet-tracker/pkg/ephemeris"
	"github.com/Sternrassler/comet-tracker/pkg/logging"
)

func main() {
	object := flag.String("object", ephemeris.Atlas().ID, "tracked object id")
	limit := flag.Int("limit", 3, "number of latest entries to print")
	payload := flag.Bool("payload", false, "print entry payloads")
	timeout := flag.Duration("timeout", 5*time.Second, "store connect and read timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(logging.Config{Level: logging.LevelWarn, Pretty: true, Output: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, closeStore, err := cache.Open(ctx, cache.Options{
		Backend:     cfg.CacheBackend,
		RedisURL:    cfg.RedisURL,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	if err := inspect(ctx, os.Stdout, store, *object, *limit, *payload, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

// inspect writes the entry count and the latest limit entries of objectID to w.
func inspect(ctx context.Context, w io.Writer, store cache.Store, objectID string, limit int, withPayload bool, now time.Time) error {
	entries, err := store.List(ctx, objectID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "backend: %s\n", store.Backend())
	fmt.Fprintf(w, "%s entries: %d\n", objectID, len(entries))
	if limit <= 0 || len(entries) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nLatest %d entries:\n", min(limit, len(entries)))
	for i, e := range entries {
		if i == limit {
			break
		}
		fmt.Fprintf(w, "- %s written_at=%s age=%s bytes=%d\n",
			e.Key(), e.WrittenAt.Format(time.RFC3339), e.Age(now).Round(time.Second), len(e.Payload))
		if withPayload {
			var pretty any
			if err := json.Unmarshal(e.Payload, &pretty); err != nil {
				return fmt.Errorf("decode %s: %w", e.Key(), err)
			}
			out, err := json.MarshalIndent(pretty, "  ", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s\n", out)
		}
	}
	return nil
}
