package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/chartflow/internal/config"
	"github.com/dunamismax/chartflow/internal/pipeline"
	"github.com/dunamismax/chartflow/internal/storage"
	"github.com/dunamismax/chartflow/internal/store"
	"github.com/dunamismax/chartflow/internal/telemetry"
	"github.com/dunamismax/chartflow/internal/webhook"
	"github.com/dunamismax/chartflow/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	shutdownTracing, err := telemetry.SetupTracing(startupCtx, "chartflow-worker", cfg.Telemetry, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	renderer, err := pipeline.NewChartRenderer()
	if err != nil {
		logger.Fatalf("renderer startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	if cfg.Database.DSN == "" {
		logger.Printf("POSTGRES_DSN is empty, using in-memory job store; job status will not reach the api")
	}
	jobStore, closeStore, err := store.Open(startupCtx, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("job store setup failed: %v", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Printf("job store close error: %v", err)
		}
	}()

	artifacts, err := storage.Open(startupCtx, cfg.Storage, cfg.Worker.LocalOutputDir)
	if err != nil {
		logger.Fatalf("storage setup failed: %v", err)
	}

	processor := pipeline.NewProcessor(renderer, pipeline.ObjectStoreEmitter{Storage: artifacts})
	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		Timeout:       cfg.Webhook.Timeout,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, processor, webhookClient, jobStore)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}()

	logger.Printf(
		"starting worker concurrency=%d max_active_renders=%d queue=%s redis=%s storage=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveRenders,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
		cfg.Storage.Backend,
	)

	if err := srv.Run(); err != nil {
		logger.Printf("worker failed: %v", err)
		os.Exit(1)
	}
}
