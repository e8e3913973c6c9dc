package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/agent"
	"github.com/duffmahn/hummingbot-track-a/internal/circuitbreaker"
	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/gateway"
	"github.com/duffmahn/hummingbot-track-a/internal/harness"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
	"github.com/duffmahn/hummingbot-track-a/internal/orchestrator"
	"github.com/duffmahn/hummingbot-track-a/internal/qualitykv"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
	"github.com/duffmahn/hummingbot-track-a/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	episodes := envInt("EPISODES", 1)
	runID := os.Getenv("RUN_ID")
	if runID == "" {
		runID = model.NewRunID(time.Now())
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	logger.Info("starting episode runner",
		"run_id", runID,
		"episodes", episodes,
		"environment", cfg.Environment,
		"force_mock", cfg.ForceMock,
		"intel_source", cfg.IntelSource,
		"seed", seed,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "clmm-episode-runner", tracingEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	// Episodes only read the envelope store; the background scheduler is
	// its single writer.
	store, err := qualitykv.OpenReadOnly(filepath.Join(cfg.BaseDir, "cache", "envelopes.json"))
	if err != nil {
		logger.Error("failed to open envelope store", "error", err)
		os.Exit(1)
	}

	reg := registry.MustNew()
	intelligence := intel.New(store, reg, logger,
		intel.WithTriggerPath(filepath.Join(cfg.BaseDir, "triggers.jsonl")),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, stopping after current episode", "signal", sig)
		cancel()
	}()

	var gw gateway.Client
	if cfg.ExecReal() {
		httpGw := gateway.NewHTTPClient(cfg.Gateway.URL, cfg.Gateway.Timeout, logger)
		httpGw.SetBreaker(circuitbreaker.New(circuitbreaker.Config{
			Name:   "gateway",
			Logger: logger,
		}))
		gw = httpGw
	} else {
		gw = gateway.NewMockGateway(seed)
	}

	executor, err := harness.SelectExecutor(ctx, cfg, gw, seed, logger)
	if err != nil {
		logger.Error("failed to select executor", "error", err)
		os.Exit(1)
	}
	h := harness.New(executor, intelligence, logger)

	var invoker agent.Invoker
	if len(cfg.Agent.Command) > 0 {
		invoker = agent.NewExternalAgent(cfg.Agent.Command, cfg.Agent.Timeout, cfg.BaseDir, logger)
	} else {
		pool := ""
		if len(cfg.ActivePools) > 0 {
			pool = cfg.ActivePools[0]
		}
		pair := ""
		if len(cfg.ActivePairs) > 0 {
			pair = cfg.ActivePairs[0]
		}
		invoker = agent.NewBuiltinProposer(agent.BuiltinConfig{
			Seed:         seed,
			ExecMode:     executor.Mode(),
			AgentVersion: cfg.Agent.Version,
			Pool:         pool,
			Pair:         pair,
			BaseDir:      cfg.BaseDir,
		}, intelligence, logger)
	}

	orch := orchestrator.New(cfg, invoker, h, logger)
	outcomes := orch.RunCampaign(ctx, runID, episodes)

	failed := 0
	for _, outcome := range outcomes {
		if outcome == orchestrator.OutcomeFailed {
			failed++
		}
	}
	logger.Info("campaign finished",
		"run_id", runID,
		"episodes", len(outcomes),
		"failed", failed,
	)
	if failed > 0 {
		os.Exit(1)
	}
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

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		for _, ch := range v {
			if ch < '0' || ch > '9' {
				return fallback
			}
			n = n*10 + int(ch-'0')
		}
		return n
	}
	return fallback
}
