package model

import "time"

// SimulationEnvelope records where a result came from and how long each
// internal step took. Source is "mock" or "live"; ID is unique per execution.
type SimulationEnvelope struct {
	ID            string             `json:"id"`
	Source        string             `json:"source"`
	StepTimingsMS map[string]float64 `json:"step_timings_ms,omitempty"`
}

// EpisodeResult is produced by the harness for every executed episode.
type EpisodeResult struct {
	EpisodeID string    `json:"episode_id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`

	Status   EpisodeStatus `json:"status"`
	ExecMode ExecMode      `json:"exec_mode"`

	Connector   string `json:"connector_execution"`
	Chain       string `json:"chain"`
	Network     string `json:"network"`
	PoolAddress string `json:"pool_address,omitempty"`

	ParamsUsed ProposalParams `json:"params_used"`

	PnLUSD         float64 `json:"pnl_usd"`
	FeesUSD        float64 `json:"fees_usd"`
	GasCostUSD     float64 `json:"gas_cost_usd"`
	MaxDrawdownUSD float64 `json:"max_drawdown_usd"`
	OutOfRangePct  float64 `json:"out_of_range_pct"`
	TradeCount     int     `json:"trade_count"`

	Simulation    *SimulationEnvelope `json:"simulation,omitempty"`
	PositionAfter map[string]any      `json:"position_after,omitempty"`

	Error string `json:"error,omitempty"`
}

// RewardBreakdown decomposes the episode reward by component.
type RewardBreakdown struct {
	Total      float64            `json:"total"`
	Components map[string]float64 `json:"components"`
}

// FailureArtifact is written on every failure path. Callers may rely on it
// instead of parsing stderr.
type FailureArtifact struct {
	Stage        Stage     `json:"stage"`
	Error        string    `json:"error"`
	ExitCode     int       `json:"exit_code"`
	ConfigHash   string    `json:"config_hash"`
	AgentVersion string    `json:"agent_version"`
	ExecMode     ExecMode  `json:"exec_mode"`
	Timestamp    time.Time `json:"timestamp"`
}
