// Package orchestrator drives episodes through their state machine:
// propose, validate (real mode), execute, record. Every failure path
// writes metadata and a failure artifact before the run moves on; no
// single episode may abort a campaign.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/agent"
	"github.com/duffmahn/hummingbot-track-a/internal/artifacts"
	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/harness"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
	"github.com/duffmahn/hummingbot-track-a/internal/reward"
	"github.com/duffmahn/hummingbot-track-a/internal/tracing"
	"github.com/duffmahn/hummingbot-track-a/internal/validator"
)

// Outcome is the per-episode exit code surfaced for downstream
// reporting. It never aborts the run.
type Outcome int

const (
	OutcomeSuccess Outcome = 0
	OutcomeFailed  Outcome = 1
	OutcomeSkipped Outcome = 2
)

// Orchestrator runs episodes sequentially within one campaign.
type Orchestrator struct {
	cfg     *config.Config
	invoker agent.Invoker
	harness *harness.Harness
	logger  *slog.Logger
	nowFn   func() time.Time
}

func New(cfg *config.Config, invoker agent.Invoker, h *harness.Harness, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:     cfg,
		invoker: invoker,
		harness: h,
		logger:  logger.With("component", "orchestrator"),
		nowFn:   time.Now,
	}
}

// RunCampaign executes count episodes under runID, continuing past
// per-episode failures. It stops early only on context cancellation.
func (o *Orchestrator) RunCampaign(ctx context.Context, runID string, count int) []Outcome {
	outcomes := make([]Outcome, 0, count)
	for i := 1; i <= count; i++ {
		if ctx.Err() != nil {
			o.logger.Info("campaign interrupted", "completed", len(outcomes))
			break
		}
		episodeID := model.NewEpisodeID(o.nowFn(), i)
		outcome := o.RunEpisode(ctx, runID, episodeID)
		outcomes = append(outcomes, outcome)

		line := fmt.Sprintf("%s episode=%s outcome=%d", o.nowFn().UTC().Format(time.RFC3339), episodeID, outcome)
		if err := artifacts.AppendCampaignLog(o.cfg.BaseDir, runID, line); err != nil {
			o.logger.Warn("append campaign log", "error", err)
		}
	}
	return outcomes
}

// RunEpisode drives one episode to a terminal state. The artifact
// contract holds on every path: proposal.json and metadata.json exist
// (metadata always, proposal unless the agent died first), and exactly
// one of result.json or failure.json closes the episode.
func (o *Orchestrator) RunEpisode(ctx context.Context, runID, episodeID string) Outcome {
	spanCtx, span := tracing.Tracer("orchestrator").Start(ctx, "orchestrator.runEpisode")
	defer span.End()

	start := o.nowFn()
	defer func() {
		metrics.EpisodeDuration.Observe(time.Since(start).Seconds())
	}()

	log := o.logger.With("run_id", runID, "episode_id", episodeID)

	// Each episode gets an isolated snapshot: reads from prior episodes
	// (possibly against other pools or pairs) must not leak into this
	// episode's metadata.
	o.harness.ResetIntelSnapshot()

	writer := artifacts.NewWriter(o.cfg.BaseDir, runID, episodeID)
	if err := writer.EnsureDirectories(); err != nil {
		log.Error("create episode dir", "error", err)
		return OutcomeFailed
	}
	timings := map[string]float64{}

	// --- Created -> Proposed ---
	agentStart := o.nowFn()
	if err := o.invoker.Propose(spanCtx, runID, episodeID); err != nil {
		exitCode := 1
		var exitErr *agent.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.Code
		}
		log.Error("agent failed", "error", err, "exit_code", exitCode)
		o.recordFailure(writer, log, episodeID, runID, model.StageAgent, err.Error(), exitCode, nil)
		return OutcomeFailed
	}
	timings["agent_ms"] = msSince(o.nowFn(), agentStart)

	proposal, err := o.loadProposal(writer)
	if err != nil {
		log.Error("proposal unreadable", "error", err)
		o.recordFailure(writer, log, episodeID, runID, model.StageAgent, err.Error(), 1, nil)
		return OutcomeFailed
	}

	if proposal.Status == model.ProposalSkipped {
		return o.recordSkip(writer, log, proposal, runID, timings)
	}

	// --- Proposed -> Validated (real mode only) ---
	execMode := o.harness.Mode()
	if execMode == model.ExecModeReal {
		if err := validator.Validate(proposal, execMode, o.cfg.Validator); err != nil {
			log.Error("validation failed", "error", err)
			o.recordFailure(writer, log, episodeID, runID, model.StageValidation, err.Error(), 1, proposal)
			return OutcomeFailed
		}
	}

	// --- Decision-time intel capture ---
	intelStart := o.nowFn()
	snapshot, hygiene := o.harness.CaptureIntelSnapshot(proposal.PoolAddress, proposal.Pair)
	timings["intel_ms"] = msSince(o.nowFn(), intelStart)
	o.mergeIntelMetadata(writer, log, proposal, snapshot, hygiene)

	if err := writer.AppendLog("episode_start", map[string]any{
		"episode_id": episodeID,
		"run_id":     runID,
		"exec_mode":  execMode.String(),
		"seed":       proposal.Metadata.Seed,
	}); err != nil {
		log.Warn("append episode log", "error", err)
	}

	// --- Validated -> Executed ---
	rc := harness.RunContext{
		RunID:        runID,
		EpisodeID:    episodeID,
		ConfigHash:   proposal.Metadata.ConfigHash,
		AgentVersion: proposal.Metadata.AgentVersion,
		ExecMode:     execMode,
		Seed:         proposal.Metadata.Seed,
		StartedAt:    start,
	}
	execStart := o.nowFn()
	result, err := o.harness.ExecuteEpisode(spanCtx, proposal, rc)
	timings["execute_ms"] = msSince(o.nowFn(), execStart)
	if err != nil {
		log.Error("harness failed", "error", err)
		o.recordFailure(writer, log, episodeID, runID, model.StageHarness, err.Error(), 1, proposal)
		return OutcomeFailed
	}

	// --- Executed -> Completed ---
	if err := writer.WriteResult(result); err != nil {
		log.Error("write result", "error", err)
		o.recordFailure(writer, log, episodeID, runID, model.StageArtifacts, err.Error(), 1, proposal)
		return OutcomeFailed
	}
	if err := writer.WriteTimings(timings); err != nil {
		log.Warn("write timings", "error", err)
	}
	if result.Status == model.StatusSuccess {
		rb := reward.Compute(result)
		if err := writer.WriteReward(&rb); err != nil {
			log.Warn("write reward", "error", err)
		}
	}

	o.finalizeMetadata(writer, log, proposal, result)

	if err := writer.AppendLog("episode_complete", map[string]any{
		"episode_id": episodeID,
		"status":     result.Status.String(),
		"pnl_usd":    result.PnLUSD,
	}); err != nil {
		log.Warn("append episode log", "error", err)
	}

	metrics.EpisodesTotal.WithLabelValues(execMode.String(), result.Status.String()).Inc()
	log.Info("episode closed", "status", result.Status, "pnl_usd", result.PnLUSD)

	switch result.Status {
	case model.StatusSuccess:
		return OutcomeSuccess
	case model.StatusSkipped:
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

func (o *Orchestrator) loadProposal(writer *artifacts.Writer) (*model.Proposal, error) {
	raw, err := os.ReadFile(filepath.Join(writer.EpisodeDir(), "proposal.json"))
	if err != nil {
		return nil, fmt.Errorf("read proposal: %w", err)
	}
	var proposal model.Proposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if proposal.EpisodeID == "" {
		return nil, fmt.Errorf("proposal missing episode_id")
	}
	return &proposal, nil
}

// recordSkip closes a cleanly gated-out episode: result.json with status
// skipped, no failure artifact.
func (o *Orchestrator) recordSkip(writer *artifacts.Writer, log *slog.Logger, proposal *model.Proposal, runID string, timings map[string]float64) Outcome {
	execMode := o.harness.Mode()
	result := &model.EpisodeResult{
		EpisodeID:   proposal.EpisodeID,
		RunID:       runID,
		Timestamp:   o.nowFn().UTC(),
		Status:      model.StatusSkipped,
		ExecMode:    execMode,
		Connector:   proposal.Connector,
		Chain:       proposal.Chain,
		Network:     proposal.Network,
		PoolAddress: proposal.PoolAddress,
		ParamsUsed:  proposal.Params,
		Error:       proposal.SkipReason,
	}
	if err := writer.WriteResult(result); err != nil {
		log.Error("write skip result", "error", err)
		return OutcomeFailed
	}
	if err := writer.WriteTimings(timings); err != nil {
		log.Warn("write timings", "error", err)
	}
	o.finalizeMetadata(writer, log, proposal, result)
	metrics.EpisodesTotal.WithLabelValues(execMode.String(), result.Status.String()).Inc()
	log.Info("episode gated out", "reason", proposal.SkipReason)
	return OutcomeSkipped
}

// recordFailure ensures metadata.json and failure.json exist before the
// orchestrator proceeds to the next episode. Intel capture is
// best-effort here; a cold cache or failed read never masks the original
// failure.
func (o *Orchestrator) recordFailure(
	writer *artifacts.Writer,
	log *slog.Logger,
	episodeID, runID string,
	stage model.Stage,
	errMsg string,
	exitCode int,
	proposal *model.Proposal,
) {
	metrics.EpisodeStageFailures.WithLabelValues(string(stage)).Inc()

	execMode := o.harness.Mode()
	configHash := "unknown"
	agentVersion := o.cfg.Agent.Version
	seed := o.cfg.Seed

	metadata := model.EpisodeMetadata{
		EpisodeID:             episodeID,
		RunID:                 runID,
		Timestamp:             o.nowFn().UTC(),
		ExecMode:              execMode,
		ConfigHash:            configHash,
		AgentVersion:          agentVersion,
		Seed:                  seed,
		LearningUpdateApplied: false,
		LearningUpdateReason:  fmt.Sprintf("episode failed at stage %s", stage),
		Timings:               model.WallTimings{StartedAt: o.nowFn().UTC(), FinishedAt: o.nowFn().UTC()},
	}
	if proposal != nil {
		metadata.ConfigHash = proposal.Metadata.ConfigHash
		metadata.AgentVersion = proposal.Metadata.AgentVersion
		metadata.Seed = proposal.Metadata.Seed
		metadata.RegimeKey = proposal.Metadata.RegimeKey

		snapshot, hygiene := o.harness.CaptureIntelSnapshot(proposal.PoolAddress, proposal.Pair)
		metadata.Extra = map[string]any{
			model.ExtraIntelSnapshot: snapshot,
			model.ExtraIntelHygiene:  hygiene,
		}
	}
	if err := writer.WriteMetadata(&metadata, true); err != nil {
		log.Error("write failure metadata", "error", err)
	}

	failure := &model.FailureArtifact{
		Stage:        stage,
		Error:        errMsg,
		ExitCode:     exitCode,
		ConfigHash:   metadata.ConfigHash,
		AgentVersion: metadata.AgentVersion,
		ExecMode:     execMode,
		Timestamp:    o.nowFn().UTC(),
	}
	if err := writer.WriteFailure(failure); err != nil {
		log.Error("write failure artifact", "error", err)
	}
	metrics.EpisodesTotal.WithLabelValues(execMode.String(), "failed").Inc()
}

// mergeIntelMetadata adds the decision-time snapshot to metadata. The
// snapshot is written once; later metadata merges leave it untouched.
func (o *Orchestrator) mergeIntelMetadata(
	writer *artifacts.Writer,
	log *slog.Logger,
	proposal *model.Proposal,
	snapshot model.IntelSnapshot,
	hygiene model.IntelHygiene,
) {
	metadata := proposal.Metadata
	metadata.Extra = map[string]any{
		model.ExtraIntelSnapshot: snapshot,
		model.ExtraIntelHygiene:  hygiene,
		"intel_inputs": map[string]any{
			"pool_address":   proposal.PoolAddress,
			"pair":           proposal.Pair,
			"lookback_hours": 1,
		},
	}
	if err := writer.WriteMetadata(&metadata, true); err != nil {
		log.Warn("merge intel metadata", "error", err)
	}
}

// finalizeMetadata applies the learning gate and closes the wall
// timings. It deliberately omits Extra so the merged snapshot stays
// fixed.
func (o *Orchestrator) finalizeMetadata(
	writer *artifacts.Writer,
	log *slog.Logger,
	proposal *model.Proposal,
	result *model.EpisodeResult,
) {
	metadata := proposal.Metadata
	metadata.Extra = nil
	metadata.ExecMode = result.ExecMode
	metadata.Timestamp = o.nowFn().UTC()
	metadata.Timings.FinishedAt = o.nowFn().UTC()

	applied, reason := o.learningGate(result)
	metadata.LearningUpdateApplied = applied
	metadata.LearningUpdateReason = reason

	if err := writer.WriteMetadata(&metadata, true); err != nil {
		log.Warn("finalize metadata", "error", err)
	}
}

// learningGate permits learning-state updates only for successful real
// episodes, or mock episodes when explicitly allowed.
func (o *Orchestrator) learningGate(result *model.EpisodeResult) (bool, string) {
	if result.Status != model.StatusSuccess {
		return false, "episode status " + result.Status.String()
	}
	if result.ExecMode == model.ExecModeReal {
		return true, ""
	}
	if o.cfg.LearnFromMock {
		return true, ""
	}
	return false, "mock episode and learn_from_mock disabled"
}

func msSince(now, start time.Time) float64 {
	return float64(now.Sub(start)) / float64(time.Millisecond)
}
