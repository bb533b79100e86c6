package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/comet-tracker/internal/api"
	"github.com/Sternrassler/comet-tracker/internal/config"
	"github.com/Sternrassler/comet-tracker/pkg/cache"
	"github.com/Sternrassler/comet-tracker/pkg/dispatch"
	"github.com/Sternrassler/comet-tracker/pkg/horizons"
	"github.com/Sternrassler/comet-tracker/pkg/logging"
	"github.com/Sternrassler/comet-tracker/pkg/ratelimit"
	"github.com/Sternrassler/comet-tracker/pkg/tracker"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

// storeWriteBudget is the slack a dispatched task gets beyond its upstream
// timeout to persist the result.
const storeWriteBudget = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: "comet-tracker",
		Version: config.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", a.server.Addr).
			Str("backend", a.store.Backend()).
			Str("horizons_url", cfg.HorizonsURL).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting comet tracker")
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// app holds the wired components of the process.
type app struct {
	server  *http.Server
	handler http.Handler
	store   cache.Store
	tracker *tracker.Service
	closers []func()
}

// newApp wires store, upstream client, dispatch pool, tracker and HTTP server.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, closers: []func(){closeStore}}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.HorizonsRateLimit,
		Burst:             ratelimit.DefaultConfig().Burst,
	}, logging.NewLogger("ratelimit"))

	upstream, err := horizons.New(horizons.Config{
		BaseURL:      cfg.HorizonsURL,
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.HorizonsTimeout,
		ProbeTimeout: cfg.HorizonsProbeTimeout,
		Limiter:      limiter,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("horizons client: %w", err)
	}

	trackerCfg := tracker.DefaultConfig()
	trackerCfg.FreshnessWindow = cfg.FreshnessWindow
	trackerCfg.Policy = cfg.PlaceholderPolicy
	trackerCfg.CoalesceFetches = cfg.CoalesceFetches
	trackerCfg.CurrentTimeout = cfg.HorizonsTimeout
	trackerCfg.HistoryTimeout = cfg.HorizonsHistoryTimeout

	pool := dispatch.NewPool(dispatch.Config{
		MaxConcurrency: cfg.DispatchWorkers,
		Timeout:        max(cfg.HorizonsTimeout, cfg.HorizonsHistoryTimeout) + storeWriteBudget,
	})

	svc, err := tracker.New(upstream, store, pool, trackerCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("tracker: %w", err)
	}
	a.tracker = svc

	apiCfg := api.DefaultConfig()
	apiCfg.Prefix = cfg.APIPrefix
	apiCfg.Version = config.Version
	srv, err := api.NewServer(svc, store, apiCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("api: %w", err)
	}
	a.handler = srv.Handler()

	a.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * max(cfg.HorizonsTimeout, cfg.HorizonsHistoryTimeout),
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStore connects the configured cache backend.
func openStore(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	return cache.Open(ctx, cache.Options{
		Backend:     cfg.CacheBackend,
		RedisURL:    cfg.RedisURL,
		PostgresDSN: cfg.PostgresDSN,
	})
}
