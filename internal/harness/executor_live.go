package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/gateway"
	"github.com/google/uuid"
)

// LiveExecutor wraps the exchange gateway with a quote-then-execute
// pattern: a simulate-mode quote must succeed (non-zero output, no
// revert, gas under the ceiling) before any capital moves. Gate failures
// surface as skipped results, health failures as failed; both always
// produce a result.
type LiveExecutor struct {
	gw         gateway.Client
	gasCeiling int64
	logger     *slog.Logger
	nowFn      func() time.Time
}

func NewLiveExecutor(gw gateway.Client, gasCeiling int64, logger *slog.Logger) *LiveExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveExecutor{
		gw:         gw,
		gasCeiling: gasCeiling,
		logger:     logger.With("component", "live_executor"),
		nowFn:      time.Now,
	}
}

func (e *LiveExecutor) Mode() model.ExecMode { return model.ExecModeReal }

func (e *LiveExecutor) ExecuteEpisode(ctx context.Context, p *model.Proposal, rc RunContext) (*model.EpisodeResult, error) {
	result := &model.EpisodeResult{
		EpisodeID:   p.EpisodeID,
		RunID:       rc.RunID,
		Timestamp:   e.nowFn().UTC(),
		ExecMode:    model.ExecModeReal,
		Connector:   p.Connector,
		Chain:       p.Chain,
		Network:     p.Network,
		PoolAddress: p.PoolAddress,
		ParamsUsed:  p.Params,
		Simulation: &model.SimulationEnvelope{
			ID:     uuid.New().String(),
			Source: "live",
		},
	}

	if p.Params.OrderSizeUSD > p.Params.MaxPositionUSD {
		return e.skip(result, "order size exceeds position cap"), nil
	}

	stepStart := e.nowFn()
	info, err := e.gw.PoolInfo(ctx, p.Chain, p.Network, p.Connector, p.PoolAddress)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return e.fail(result, fmt.Sprintf("%v: pool info", ErrExecutorTimeout)), nil
		}
		return e.fail(result, fmt.Sprintf("pool info: %v", err)), nil
	}
	e.recordStep(result, "pool_info", stepStart)

	halfWidth := p.Params.RangeWidthPct / 200
	quoteReq := gateway.QuoteRequest{
		Chain:      p.Chain,
		Network:    p.Network,
		Connector:  p.Connector,
		Pool:       p.PoolAddress,
		LowerPrice: 1 - halfWidth,
		UpperPrice: 1 + halfWidth,
		AmountUSD:  p.Params.OrderSizeUSD,
		Simulate:   true,
	}

	stepStart = e.nowFn()
	quote, err := e.gw.QuotePosition(ctx, quoteReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return e.fail(result, fmt.Sprintf("%v: quote", ErrExecutorTimeout)), nil
		}
		return e.fail(result, fmt.Sprintf("quote: %v", err)), nil
	}
	e.recordStep(result, "quote", stepStart)

	switch {
	case !quote.Success || quote.Error != "":
		return e.skip(result, fmt.Sprintf("quote simulation reverted: %s", quote.Error)), nil
	case !quote.SimulationSuccess:
		return e.skip(result, "quote simulation did not run"), nil
	case quote.AmountOut <= 0:
		return e.skip(result, "quote produced zero output"), nil
	case e.gasCeiling > 0 && quote.GasEstimate > e.gasCeiling:
		return e.skip(result, fmt.Sprintf("gas estimate %d above ceiling %d", quote.GasEstimate, e.gasCeiling)), nil
	}

	quoteReq.Simulate = false
	stepStart = e.nowFn()
	receipt, err := e.gw.OpenPosition(ctx, quoteReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return e.fail(result, fmt.Sprintf("%v: open position", ErrExecutorTimeout)), nil
		}
		return e.fail(result, fmt.Sprintf("open position: %v", err)), nil
	}
	e.recordStep(result, "open_position", stepStart)

	stepStart = e.nowFn()
	feesReceipt, err := e.gw.CollectFees(ctx, p.Chain, p.Network, p.Connector, receipt.TokenID)
	if err != nil {
		e.logger.Warn("collect fees failed", "token_id", receipt.TokenID, "error", err)
	}
	e.recordStep(result, "collect_fees", stepStart)

	stepStart = e.nowFn()
	closeReceipt, err := e.gw.ClosePosition(ctx, p.Chain, p.Network, p.Connector, receipt.TokenID)
	if err != nil {
		return e.fail(result, fmt.Sprintf("close position: %v", err)), nil
	}
	e.recordStep(result, "close_position", stepStart)

	gasUsed := receipt.GasUsed + closeReceipt.GasUsed
	if feesReceipt != nil {
		gasUsed += feesReceipt.GasUsed
	}

	result.Status = model.StatusSuccess
	result.GasCostUSD = float64(gasUsed) / 1e6
	if feesReceipt != nil {
		result.FeesUSD = parseAmountUSD(feesReceipt.Amount1)
	}
	result.PnLUSD = result.FeesUSD - result.GasCostUSD
	result.TradeCount = 1
	result.PositionAfter = map[string]any{
		"token_id":     receipt.TokenID,
		"closed":       true,
		"pool_tick":    info.Tick,
		"notional_usd": p.Params.OrderSizeUSD,
	}
	return result, nil
}

func (e *LiveExecutor) skip(result *model.EpisodeResult, reason string) *model.EpisodeResult {
	e.logger.Info("episode gated out", "episode_id", result.EpisodeID, "reason", reason)
	result.Status = model.StatusSkipped
	result.Error = reason
	return result
}

func (e *LiveExecutor) fail(result *model.EpisodeResult, reason string) *model.EpisodeResult {
	e.logger.Error("episode failed", "episode_id", result.EpisodeID, "reason", reason)
	result.Status = model.StatusFailed
	result.Error = reason
	return result
}

func (e *LiveExecutor) recordStep(result *model.EpisodeResult, step string, start time.Time) {
	if result.Simulation.StepTimingsMS == nil {
		result.Simulation.StepTimingsMS = make(map[string]float64)
	}
	result.Simulation.StepTimingsMS[step] = float64(e.nowFn().Sub(start)) / float64(time.Millisecond)
}

func parseAmountUSD(raw string) float64 {
	var v float64
	if _, err := fmt.Sscanf(raw, "%f", &v); err != nil {
		return 0
	}
	// Gateway amounts are denominated in USDC base units.
	return v / 1e6
}
