// Package gateway wraps the external CLMM exchange gateway. The live
// executor talks to it with a quote-then-execute pattern; a seeded mock
// implementation backs deterministic episodes and tests.
package gateway

import "context"

// PoolInfo is the on-chain pool state the executors read.
type PoolInfo struct {
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Fee          string `json:"fee"`
	TickSpacing  int    `json:"tickSpacing"`
	Liquidity    string `json:"liquidity"`
	SqrtPriceX96 string `json:"sqrtPriceX96"`
	Tick         int    `json:"tick"`
}

// QuoteRequest asks the gateway to price (and optionally simulate) a
// position before committing capital.
type QuoteRequest struct {
	Chain      string  `json:"chain"`
	Network    string  `json:"network"`
	Connector  string  `json:"connector"`
	Pool       string  `json:"pool_address"`
	LowerPrice float64 `json:"lower_price"`
	UpperPrice float64 `json:"upper_price"`
	AmountUSD  float64 `json:"amount_usd"`
	Simulate   bool    `json:"simulate"`
}

// QuoteResult is the gateway's answer. SimulationSuccess means the quote
// executed in simulate mode without reverting.
type QuoteResult struct {
	Success           bool    `json:"success"`
	SimulationSuccess bool    `json:"simulation_success"`
	AmountOut         int64   `json:"amount_out"`
	GasEstimate       int64   `json:"gas_estimate"`
	LatencyMS         float64 `json:"latency_ms"`
	Error             string  `json:"error,omitempty"`
	Source            string  `json:"source"`
}

// TxReceipt is the result of a state-changing gateway call.
type TxReceipt struct {
	TxHash  string `json:"txHash"`
	GasUsed int64  `json:"gasUsed"`
	Amount0 string `json:"amount0,omitempty"`
	Amount1 string `json:"amount1,omitempty"`
	TokenID int64  `json:"tokenId,omitempty"`
}

// Client is the surface the live executor consumes.
type Client interface {
	PoolInfo(ctx context.Context, chain, network, connector, pool string) (*PoolInfo, error)
	QuotePosition(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
	OpenPosition(ctx context.Context, req QuoteRequest) (*TxReceipt, error)
	ClosePosition(ctx context.Context, chain, network, connector string, tokenID int64) (*TxReceipt, error)
	CollectFees(ctx context.Context, chain, network, connector string, tokenID int64) (*TxReceipt, error)
	Health(ctx context.Context) error
}
