// Package harness owns episode execution. It selects the mock or live
// executor, captures the intel snapshot at decision time, and maps
// executor failures onto the episode status taxonomy.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/gateway"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
)

// ErrExecutorTimeout marks executions that exceeded their deadline.
var ErrExecutorTimeout = errors.New("executor timeout")

// RunContext carries per-episode provenance into the executor.
type RunContext struct {
	RunID        string
	EpisodeID    string
	ConfigHash   string
	AgentVersion string
	ExecMode     model.ExecMode
	Seed         int64
	StartedAt    time.Time
}

// Executor drives one episode against a backing venue.
type Executor interface {
	ExecuteEpisode(ctx context.Context, p *model.Proposal, rc RunContext) (*model.EpisodeResult, error)
	Mode() model.ExecMode
}

// Harness binds an executor with the intelligence facade.
type Harness struct {
	executor Executor
	intel    *intel.Intelligence
	logger   *slog.Logger
}

func New(executor Executor, intelligence *intel.Intelligence, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		executor: executor,
		intel:    intelligence,
		logger:   logger.With("component", "harness"),
	}
}

// Mode reports which executor backs this harness.
func (h *Harness) Mode() model.ExecMode { return h.executor.Mode() }

// ResetIntelSnapshot starts a fresh per-episode snapshot. Without this
// a campaign whose agent moves across pools or pairs would leak prior
// episodes' reads into the current episode's snapshot.
func (h *Harness) ResetIntelSnapshot() {
	h.intel.ResetSnapshot()
}

// CaptureIntelSnapshot touches the decision-time accessor set so every
// query's freshness lands in the snapshot, then returns snapshot and
// hygiene for the metadata writer. Reads are cache-first and never block
// on the network.
func (h *Harness) CaptureIntelSnapshot(pool, pair string) (model.IntelSnapshot, model.IntelHygiene) {
	h.intel.GetGasRegime()
	h.intel.GetPoolHealth(pool, pair, 1)
	h.intel.GetMevRisk(pool)
	h.intel.GetRangeHint(pool)
	h.intel.GetPoolHealthScore(pool)
	h.intel.GetWhaleSentiment(pair)

	snapshot := h.intel.Snapshot()
	hygiene := h.intel.Hygiene()
	h.logger.Info("intel snapshot captured",
		"queries", hygiene.TotalQueries,
		"fresh", hygiene.FreshCount,
		"stale", hygiene.StaleCount,
		"missing_or_too_old", hygiene.MissingOrTooOldCount,
	)
	return snapshot, hygiene
}

// ExecuteEpisode runs the proposal through the selected executor.
func (h *Harness) ExecuteEpisode(ctx context.Context, p *model.Proposal, rc RunContext) (*model.EpisodeResult, error) {
	result, err := h.executor.ExecuteEpisode(ctx, p, rc)
	if err != nil {
		return nil, err
	}
	if result.ExecMode != rc.ExecMode {
		return nil, fmt.Errorf("executor mode %q does not match context mode %q", result.ExecMode, rc.ExecMode)
	}
	return result, nil
}

// SelectExecutor applies the mode rules: a mock override always wins;
// otherwise real mode requires a healthy gateway and either runs live or
// degrades to mock when the config permits.
func SelectExecutor(
	ctx context.Context,
	cfg *config.Config,
	gw gateway.Client,
	seed int64,
	logger *slog.Logger,
) (Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.ExecReal() {
		return NewMockExecutor(seed, logger), nil
	}

	if !cfg.Validator.RiskAcknowledged {
		return nil, fmt.Errorf("real execution requires explicit risk acknowledgement")
	}

	if err := gw.Health(ctx); err != nil {
		if cfg.Validator.DegradeToMock {
			logger.Warn("gateway unhealthy, degrading to mock", "error", err)
			return NewMockExecutor(seed, logger), nil
		}
		return nil, fmt.Errorf("gateway unhealthy and degrade disabled: %w", err)
	}
	return NewLiveExecutor(gw, cfg.Validator.GasCeiling, logger), nil
}
