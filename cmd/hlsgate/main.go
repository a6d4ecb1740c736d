// SPDX-License-Identifier: MIT

// Command hlsgate runs the streaming-aware media proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hlsgate/hlsgate/internal/api"
	"github.com/hlsgate/hlsgate/internal/cache"
	"github.com/hlsgate/hlsgate/internal/config"
	"github.com/hlsgate/hlsgate/internal/domains"
	hlog "github.com/hlsgate/hlsgate/internal/log"
	"github.com/hlsgate/hlsgate/internal/metrics"
	"github.com/hlsgate/hlsgate/internal/proxy"
	"github.com/hlsgate/hlsgate/internal/rewrite"
	"github.com/hlsgate/hlsgate/internal/workers"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hlsgate %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	hlog.Configure(hlog.Config{Service: "hlsgate"})
	logger := hlog.WithComponent("main")

	cfg := config.FromEnv()
	if cfg.Version == "dev" && version != "dev" {
		cfg.Version = version
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache backend: Redis when configured and reachable, else in-process.
	cacheCfg := cache.Config{
		MaxBytes:      cfg.CacheMaxBytes,
		EntryMaxBytes: cfg.CacheEntryMax,
		TTL:           cfg.CacheTTL,
	}
	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cacheCfg, hlog.WithComponent("cache"))
		if err != nil {
			logger.Warn().Err(err).
				Str("addr", cfg.RedisAddr).
				Msg("redis unavailable, falling back to memory cache")
		} else {
			store = redisStore
		}
	}
	if store == nil {
		store = cache.NewMemory(cacheCfg)
	}

	pool := workers.New(cfg.WorkerCount, cfg.WorkerQueueSize, cfg.WorkerMinBytes, hlog.WithComponent("workers"))

	registry := domains.New(hlog.WithComponent("domains"))
	if cfg.DomainTemplateFile != "" {
		if err := registry.LoadFile(cfg.DomainTemplateFile); err != nil {
			logger.Fatal().Err(err).
				Str("path", cfg.DomainTemplateFile).
				Msg("failed to load domain templates")
		}
	}

	registryMetrics := metrics.NewRegistry()

	proxySrv := proxy.New(proxy.Options{
		Config:   cfg,
		Logger:   hlog.WithComponent("proxy"),
		Store:    store,
		Pool:     pool,
		Registry: registry,
		RewriteOptions: rewrite.Options{
			URLParamName:        "url",
			PreserveQueryParams: true,
			Logger:              hlog.WithComponent("rewrite"),
		},
		Metrics: registryMetrics,
	})

	apiSrv := api.New(api.Options{
		Config:  cfg,
		Logger:  hlog.WithComponent("api"),
		Proxy:   proxySrv,
		Store:   store,
		Pool:    pool,
		Metrics: registryMetrics,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: apiSrv.Router(),
		// Read/idle guards; no WriteTimeout so long-lived media streams
		// are not cut mid-flight.
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("version", cfg.Version).
			Str("environment", cfg.Environment).
			Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		pool.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("stopped")
}
