package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/artifacts"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
)

// BuiltinProposer is the in-process proposer used when no external agent
// command is configured. Its policy is intentionally simple: read the
// cached market view, pick a regime deterministically from the derived
// episode seed, and shape the range parameters from volatility.
type BuiltinProposer struct {
	seed         int64
	execMode     model.ExecMode
	agentVersion string
	pool         string
	pair         string
	intel        *intel.Intelligence
	baseDir      string
	logger       *slog.Logger
	nowFn        func() time.Time
}

type BuiltinConfig struct {
	Seed         int64
	ExecMode     model.ExecMode
	AgentVersion string
	Pool         string
	Pair         string
	BaseDir      string
}

func NewBuiltinProposer(cfg BuiltinConfig, intelligence *intel.Intelligence, logger *slog.Logger) *BuiltinProposer {
	if logger == nil {
		logger = slog.Default()
	}
	pool := cfg.Pool
	if pool == "" {
		pool = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640" // WETH-USDC 0.05%
	}
	pair := cfg.Pair
	if pair == "" {
		pair = "WETH-USDC"
	}
	return &BuiltinProposer{
		seed:         cfg.Seed,
		execMode:     cfg.ExecMode,
		agentVersion: cfg.AgentVersion,
		pool:         pool,
		pair:         pair,
		intel:        intelligence,
		baseDir:      cfg.BaseDir,
		logger:       logger.With("component", "builtin_proposer"),
		nowFn:        time.Now,
	}
}

func (b *BuiltinProposer) Propose(_ context.Context, runID, episodeID string) error {
	rng := rand.New(rand.NewSource(deriveSeed(b.seed, episodeID)))

	volatility, volRec := b.intel.Volatility(b.pair, 60)
	health, _ := b.intel.GetPoolHealth(b.pool, b.pair, 1)

	regime := pickRegime(rng, volatility)

	// Wider ranges and slower refresh under higher volatility.
	params := model.ProposalParams{
		RangeWidthPct:         clamp(2+volatility*4, 1, 20),
		RefreshIntervalS:      300,
		SpreadBps:             clamp(5+volatility*20, 5, 100),
		OrderSizeUSD:          10_000,
		RebalanceThresholdPct: clamp(1+volatility*2, 0.5, 10),
		MaxPositionUSD:        50_000,
	}

	basis := &model.DecisionBasis{
		Inputs: map[string]float64{
			"volatility_1h": volatility,
			"volume":        health.Volume,
			"avg_liquidity": health.AvgLiquidity,
		},
		RuleFired: "volatility_scaled_range",
		Thresholds: map[string]float64{
			"high_vol": 1.0,
			"dead_vol": 0.05,
		},
	}
	if !health.Tradeable {
		basis.RuleFired = "health_gate"
	}

	configHash := ConfigHash(map[string]any{
		"range_width_pct":         params.RangeWidthPct,
		"refresh_interval_s":      params.RefreshIntervalS,
		"spread_bps":              params.SpreadBps,
		"order_size_usd":          params.OrderSizeUSD,
		"rebalance_threshold_pct": params.RebalanceThresholdPct,
		"max_position_usd":        params.MaxPositionUSD,
	})

	now := b.nowFn().UTC()
	metadata := model.EpisodeMetadata{
		EpisodeID:    episodeID,
		RunID:        runID,
		Timestamp:    now,
		ExecMode:     b.execMode,
		ConfigHash:   configHash,
		AgentVersion: b.agentVersion,
		Seed:         b.seed,
		RegimeKey:    regime.String(),
		Basis:        basis,
		Timings:      model.WallTimings{StartedAt: now},
	}

	proposal := model.Proposal{
		EpisodeID:   episodeID,
		GeneratedAt: now,
		Status:      model.ProposalActive,
		Connector:   model.DefaultConnector,
		Chain:       "ethereum",
		Network:     "mainnet",
		PoolAddress: b.pool,
		Pair:        b.pair,
		Params:      params,
		Metadata:    metadata,
	}
	if !health.Tradeable && volRec.Quality == model.QualityFresh {
		// Only skip on a live signal; a cold cache must not stall mock runs.
		proposal.Status = model.ProposalSkipped
		proposal.SkipReason = health.Reason
	}

	writer := artifacts.NewWriter(b.baseDir, runID, episodeID)
	if err := writer.WriteProposal(&proposal); err != nil {
		return fmt.Errorf("write proposal: %w", err)
	}
	if err := writer.WriteMetadata(&metadata, false); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	b.logger.Info("proposal written",
		"episode_id", episodeID,
		"regime", regime,
		"range_width_pct", params.RangeWidthPct,
		"status", proposal.Status,
	)
	return nil
}

func pickRegime(rng *rand.Rand, volatility float64) model.Regime {
	if volatility > 1.5 {
		return model.RegimeJumpy
	}
	regimes := model.Regimes()
	return regimes[rng.Intn(len(regimes))]
}

func deriveSeed(seed int64, episodeID string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s", seed, episodeID)
	return int64(h.Sum64())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
