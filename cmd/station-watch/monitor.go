package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-watch/internal/cache"
	"github.com/kjstillabower/station-watch/internal/catalog"
	"github.com/kjstillabower/station-watch/internal/circuitbreaker"
	"github.com/kjstillabower/station-watch/internal/client"
	"github.com/kjstillabower/station-watch/internal/config"
	"github.com/kjstillabower/station-watch/internal/console"
	httphandler "github.com/kjstillabower/station-watch/internal/http"
	"github.com/kjstillabower/station-watch/internal/lifecycle"
	"github.com/kjstillabower/station-watch/internal/observability"
	"github.com/kjstillabower/station-watch/internal/refresh"
	"github.com/kjstillabower/station-watch/internal/service"
	"github.com/kjstillabower/station-watch/internal/traffic"
	"github.com/kjstillabower/station-watch/internal/watchlist"
)

const breakerComponent = "bom_api"

// runMonitor loads the catalog, starts the refresher and the optional status
// server, and runs the menu until the operator quits, input ends, or ctx is
// cancelled. Everything it started is stopped before it returns.
func runMonitor(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *zap.Logger) error {
	lifecycle.SetPhase(lifecycle.Starting)

	cat, err := catalog.LoadFile(cfg.CatalogPath, cfg.CatalogMaxStations)
	if err != nil {
		return err
	}
	logger.Info("station catalog loaded", zap.String("path", cfg.CatalogPath), zap.Int("stations", cat.Len()))
	if cat.Truncated() {
		logger.Warn("station catalog truncated", zap.Int("max_stations", cfg.CatalogMaxStations))
	}

	fetcher, memcached, err := buildFetcher(cfg, logger)
	if err != nil {
		return err
	}
	if memcached != nil {
		defer func() {
			if err := memcached.Close(); err != nil {
				logger.Error("memcached close", zap.Error(err))
			}
		}()
	}

	wl := watchlist.New()
	outcomes := &traffic.Tracker{}
	refresher := refresh.New(wl, fetcher, cfg.RefreshInterval, logger, refresh.WithOutcomeTracker(outcomes))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		_ = refresher.Run(runCtx)
	}()

	var srv *http.Server
	if cfg.ServerPort != "" {
		healthConfig := &httphandler.HealthConfig{
			DegradedWindow:     cfg.DegradedWindow,
			DegradedErrorPct:   cfg.DegradedErrorPct,
			DegradedMinSamples: cfg.DegradedMinSamples,
			StartTime:          time.Now(),
		}
		if memcached != nil {
			healthConfig.CachePing = memcached.Ping
		}
		handler := httphandler.NewHandler(wl, refresher, outcomes, healthConfig, logger)
		srv, err = startServer(":"+cfg.ServerPort, httphandler.NewRouter(handler, logger), logger)
		if err != nil {
			cancel()
			<-refreshDone
			return err
		}
	}

	lifecycle.SetPhase(lifecycle.Running)

	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- console.New(in, out, cat, wl, logger).Run(runCtx)
	}()

	var runErr error
	select {
	case runErr = <-consoleDone:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
		logger.Info("operator quit")
	case <-ctx.Done():
		// The console may be blocked on input; it is abandoned.
		logger.Info("shutdown signal received")
	}

	lifecycle.SetPhase(lifecycle.Stopping)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
		if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
	}
	select {
	case <-refreshDone:
	case <-shutdownCtx.Done():
		logger.Warn("refresh loop did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return runErr
}

// buildFetcher assembles BOM client, circuit breaker, rate limiter and the
// configured cache. The returned MemcachedCache is non-nil only for the
// memcached backend and must be closed by the caller.
func buildFetcher(cfg *config.Config, logger *zap.Logger) (client.Fetcher, *cache.MemcachedCache, error) {
	bom, err := client.NewBOMClient(client.Options{
		URLTemplate:    cfg.WeatherAPIURLTemplate,
		UserAgent:      cfg.WeatherAPIUserAgent,
		Timeout:        cfg.WeatherAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("weather client: %w", err)
	}

	cb := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Component:        breakerComponent,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(breakerComponent, from.String(), to.String(), int(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", breakerComponent),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	bom.SetCircuitBreaker(cb)
	observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(0)

	if cfg.RateLimitRPS > 0 {
		bom.SetRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst))
	}

	if cfg.CacheTTL <= 0 {
		logger.Info("reading cache disabled")
		return bom, nil, nil
	}

	var (
		store     cache.Cache
		memcached *cache.MemcachedCache
	)
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		store, memcached = mc, mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs), zap.Duration("ttl", cfg.CacheTTL))
	default:
		store = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory", zap.Duration("ttl", cfg.CacheTTL))
	}
	return service.NewReadingService(bom, store, cfg.CacheTTL, logger), memcached, nil
}

// startServer binds addr before returning so a busy port fails startup.
func startServer(addr string, handler http.Handler, logger *zap.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status server listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server starting", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server", zap.Error(err))
		}
	}()
	return srv, nil
}
