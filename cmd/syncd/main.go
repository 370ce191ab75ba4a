package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-mobile/internal/cart"
	"github.com/angelmondragon/packfinderz-mobile/internal/stores"
	"github.com/angelmondragon/packfinderz-mobile/internal/syncer"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache"
	"github.com/angelmondragon/packfinderz-mobile/pkg/config"
	"github.com/angelmondragon/packfinderz-mobile/pkg/connectivity"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
	"github.com/angelmondragon/packfinderz-mobile/pkg/metrics"
	"github.com/angelmondragon/packfinderz-mobile/pkg/remote"
	"github.com/angelmondragon/packfinderz-mobile/pkg/storage/gcs"
	"github.com/angelmondragon/packfinderz-mobile/pkg/tasks"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "syncd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "syncd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	cacheClient, err := cache.New(context.Background(), cfg.Cache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open local cache", err)
		os.Exit(1)
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing local cache", err)
		}
	}()

	remoteClient, err := remote.NewClient(cfg.Remote, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build remote client", err)
		os.Exit(1)
	}

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build storage client", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage client", err)
		}
	}()

	monitor, err := connectivity.NewMonitor(cfg.Connectivity, cfg.Connectivity.ProbeTarget(cfg.Remote), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build connectivity monitor", err)
		os.Exit(1)
	}

	pool := tasks.NewPool(cfg.Sync.Workers, cfg.Sync.QueueSize, logg)
	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	cartRepo := cart.NewRepository(cacheClient)
	cartSvc, err := cart.NewService(cartRepo, remoteClient, monitor, pool, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart service", err)
		os.Exit(1)
	}

	storeRepo := stores.NewRepository(cacheClient)
	storeSvc, err := stores.NewService(storeRepo, remoteClient, gcsClient, monitor, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build store service", err)
		os.Exit(1)
	}

	coordinator, err := syncer.NewService(cartSvc, storeSvc, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build sync coordinator", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:      cfg,
		Logger:      logg,
		Cache:       cacheClient,
		Remote:      remoteClient,
		Monitor:     monitor,
		Pool:        pool,
		Coordinator: coordinator,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync daemon", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "syncd",
	})
	logg.Info(ctx, "starting sync daemon")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync daemon stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync daemon shutting down gracefully")
}
