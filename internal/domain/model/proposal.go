package model

import "time"

// ProposalParams is the parameter bundle the agent proposes for one episode.
type ProposalParams struct {
	RangeWidthPct         float64 `json:"range_width_pct"`
	RefreshIntervalS      int     `json:"refresh_interval_s"`
	SpreadBps             float64 `json:"spread_bps"`
	OrderSizeUSD          float64 `json:"order_size_usd"`
	RebalanceThresholdPct float64 `json:"rebalance_threshold_pct"`
	MaxPositionUSD        float64 `json:"max_position_usd"`
}

// DecisionBasis records the inputs and rule that produced a proposal, so a
// run can be audited without re-running the agent.
type DecisionBasis struct {
	Inputs     map[string]float64 `json:"inputs"`
	RuleFired  string             `json:"rule_fired"`
	Thresholds map[string]float64 `json:"thresholds"`
}

// Proposal describes what to do for one episode. Immutable after write.
type Proposal struct {
	EpisodeID   string         `json:"episode_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Status      ProposalStatus `json:"status"`
	SkipReason  string         `json:"skip_reason,omitempty"`

	Connector   string `json:"connector_execution"`
	Chain       string `json:"chain"`
	Network     string `json:"network"`
	PoolAddress string `json:"pool_address,omitempty"`
	Pair        string `json:"pair,omitempty"`

	Params ProposalParams `json:"params"`

	Metadata EpisodeMetadata `json:"metadata"`
}

// DefaultConnector is the only connector this pipeline executes against.
const DefaultConnector = "uniswap_v3_clmm"
