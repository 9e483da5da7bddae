package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/chartflow/internal/api"
	"github.com/dunamismax/chartflow/internal/config"
	"github.com/dunamismax/chartflow/internal/pipeline"
	"github.com/dunamismax/chartflow/internal/queue"
	"github.com/dunamismax/chartflow/internal/ratelimit"
	"github.com/dunamismax/chartflow/internal/storage"
	"github.com/dunamismax/chartflow/internal/store"
	"github.com/dunamismax/chartflow/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	shutdownTracing, err := telemetry.SetupTracing(startupCtx, "chartflow-api", cfg.Telemetry, logger)
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

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	limiter, closeLimiter, err := newRateLimiter(cfg)
	if err != nil {
		logger.Fatalf("rate limiter setup failed: %v", err)
	}
	defer func() {
		if err := closeLimiter(); err != nil {
			logger.Printf("rate limiter close error: %v", err)
		}
	}()

	app, err := api.NewServer(api.Options{
		Logger:              logger,
		Renderer:            renderer,
		Queue:               queueClient,
		JobStore:            jobStore,
		Artifacts:           artifacts,
		RateLimiter:         limiter,
		RateLimitUserHeader: cfg.RateLimit.UserHeader,
		PublicURL:           cfg.API.PublicURL,
		PresignTTL:          cfg.API.PresignTTL,
	})
	if err != nil {
		logger.Fatalf("api setup failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s storage=%s rate_limit=%t", cfg.API.Addr, cfg.Storage.Backend, limiter != nil)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

// newRateLimiter returns a nil limiter when rate limiting is disabled.
func newRateLimiter(cfg config.Config) (ratelimit.Limiter, func() error, error) {
	noop := func() error { return nil }
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}

	if cfg.RateLimit.Backend != "redis" {
		limiter, err := ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			return nil, nil, err
		}
		return limiter, noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	limiter, err := ratelimit.NewRedisTokenBucket(client, cfg.RateLimit.Requests, cfg.RateLimit.Window, "")
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return limiter, client.Close, nil
}
