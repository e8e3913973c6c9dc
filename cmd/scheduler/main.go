package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/analytics"
	"github.com/duffmahn/hummingbot-track-a/internal/circuitbreaker"
	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/qualitykv"
	"github.com/duffmahn/hummingbot-track-a/internal/ratelimit"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
	"github.com/duffmahn/hummingbot-track-a/internal/scheduler"
	"github.com/duffmahn/hummingbot-track-a/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("starting refresh scheduler",
		"intel_source", cfg.IntelSource,
		"tick_interval", cfg.Scheduler.TickInterval,
		"workers", cfg.Scheduler.WorkerCount,
		"pool_cap", cfg.Scheduler.PoolCap,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "clmm-scheduler", tracingEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	overlay, err := config.LoadSchedulerOverlay(cfg.Scheduler.ConfigFile)
	if err != nil {
		logger.Error("failed to load scheduler overlay", "error", err)
		os.Exit(1)
	}
	overlay.Apply(cfg)

	reg, err := registry.New(overlay.Queries)
	if err != nil {
		logger.Error("failed to build query registry", "error", err)
		os.Exit(1)
	}

	store, err := qualitykv.Open(filepath.Join(cfg.BaseDir, "cache", "envelopes.json"))
	if err != nil {
		logger.Error("failed to open envelope store", "error", err)
		os.Exit(1)
	}

	var caller analytics.Caller
	if cfg.IntelSource == config.IntelDune {
		client := analytics.NewDuneClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout, logger)
		client.SetRateLimiter(ratelimit.NewLimiter(cfg.Backend.RPS, cfg.Backend.Burst))
		client.SetBreaker(circuitbreaker.New(circuitbreaker.Config{
			Name:   "dune",
			Logger: logger,
		}))
		caller = client
	} else {
		caller = analytics.NewMockBackend(cfg.Seed)
	}

	sched := scheduler.New(
		cfg.Scheduler,
		reg,
		store,
		caller,
		cfg.BaseDir,
		filepath.Join(cfg.BaseDir, "triggers.jsonl"),
		logger,
		scheduler.WithActivePools(cfg.ActivePools),
		scheduler.WithActivePairs(cfg.ActivePairs),
		scheduler.WithSource(string(cfg.IntelSource)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	g.Go(func() error {
		return sched.RunForever(gCtx)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler shut down gracefully")
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
