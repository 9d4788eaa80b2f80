package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvid-labs/capsule/internal/config"
	"github.com/corvid-labs/capsule/internal/env"
	"github.com/corvid-labs/capsule/internal/handlers"
	"github.com/corvid-labs/capsule/internal/jobqueue"
	"github.com/corvid-labs/capsule/internal/storage/postgres"
	"github.com/corvid-labs/capsule/internal/supervisor"
	"github.com/corvid-labs/capsule/pkg/observability"
)

const serviceName = "capsule-worker"

func main() {
	ctx := context.Background()

	workerCfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("failed to load worker config: %v", err)
	}

	obsCfg := &config.ObservabilityConfig{OTelEnabled: true}
	if err := env.Load(obsCfg); err != nil {
		log.Fatalf("failed to load observability config: %v", err)
	}

	_, logger, err := observability.InitLogger(ctx, serviceName, obsCfg.OTelEnabled)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, serviceName, obsCfg.OTelEnabled)
	if err != nil {
		log.Fatalf("failed to init tracer provider: %v", err)
	}
	defer tp.Shutdown(ctx)

	mp, err := observability.InitMeterProvider(ctx, serviceName, obsCfg.OTelEnabled)
	if err != nil {
		log.Fatalf("failed to init meter provider: %v", err)
	}
	defer mp.Shutdown(ctx)

	store, err := postgres.NewStore(ctx, workerCfg.Database)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	registry := handlers.NewRegistry()
	registry.Register("example", handlers.NewExampleHandler)
	registry.Register("fetch_page", handlers.NewFetchPageHandler)

	var handle jobqueue.Handle = store

	sup := supervisor.New(handle, registry, supervisor.Config{
		Concurrency:           workerCfg.Concurrency,
		PollIntervalMs:        workerCfg.PollIntervalMs,
		VisibilityTimeoutSecs: workerCfg.VisibilityTimeoutSecs,
		BaseBackoffSecs:       workerCfg.BaseBackoffSecs,
	})

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.InfoContext(ctx, "worker starting",
		"concurrency", workerCfg.Concurrency,
		"poll_interval_ms", workerCfg.PollIntervalMs)

	if err := sup.Run(runCtx); err != nil {
		slog.ErrorContext(ctx, "worker exited with error", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "worker stopped")
}
