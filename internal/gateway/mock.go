package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// MockGateway answers every route deterministically for a given seed.
// Repeated calls with identical arguments return identical values, so a
// replayed episode observes the same pool state.
type MockGateway struct {
	seed int64
}

func NewMockGateway(seed int64) *MockGateway {
	if seed == 0 {
		seed = 42
	}
	return &MockGateway{seed: seed}
}

func (m *MockGateway) rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", m.seed)
	for _, p := range parts {
		fmt.Fprintf(h, "|%s", p)
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (m *MockGateway) PoolInfo(_ context.Context, chain, network, connector, pool string) (*PoolInfo, error) {
	rng := m.rng("pool_info", chain, network, connector, pool)

	const tickSpacing = 60
	rawTick := rng.Intn(2*887272) - 887272
	tick := int(math.Round(float64(rawTick)/tickSpacing)) * tickSpacing
	sqrtPriceX96 := math.Pow(1.0001, float64(tick)/2) * math.Pow(2, 96)

	return &PoolInfo{
		Token0:       "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
		Token1:       "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", // USDC
		Fee:          "3000",
		TickSpacing:  tickSpacing,
		Liquidity:    fmt.Sprintf("%d", 1_000_000+rng.Intn(9_000_000)),
		SqrtPriceX96: fmt.Sprintf("%.0f", sqrtPriceX96),
		Tick:         tick,
	}, nil
}

func (m *MockGateway) QuotePosition(_ context.Context, req QuoteRequest) (*QuoteResult, error) {
	rng := m.rng("quote", req.Pool, fmt.Sprintf("%.4f|%.4f|%.2f", req.LowerPrice, req.UpperPrice, req.AmountUSD))
	return &QuoteResult{
		Success:           true,
		SimulationSuccess: req.Simulate,
		AmountOut:         int64(1_000_000 + rng.Intn(9_000_000)),
		GasEstimate:       int64(200_000 + rng.Intn(200_000)),
		Source:            "mock",
	}, nil
}

func (m *MockGateway) OpenPosition(_ context.Context, req QuoteRequest) (*TxReceipt, error) {
	rng := m.rng("open", req.Pool)
	return &TxReceipt{
		TxHash:  mockTxHash(rng),
		GasUsed: int64(200_000 + rng.Intn(200_000)),
		TokenID: int64(1000 + rng.Intn(9000)),
	}, nil
}

func (m *MockGateway) ClosePosition(_ context.Context, chain, network, connector string, tokenID int64) (*TxReceipt, error) {
	rng := m.rng("close", fmt.Sprintf("%d", tokenID))
	return &TxReceipt{
		TxHash:  mockTxHash(rng),
		GasUsed: int64(150_000 + rng.Intn(150_000)),
		Amount0: fmt.Sprintf("%d", 1_000_000+rng.Intn(9_000_000)),
		Amount1: fmt.Sprintf("%d", 1_000_000+rng.Intn(9_000_000)),
	}, nil
}

func (m *MockGateway) CollectFees(_ context.Context, chain, network, connector string, tokenID int64) (*TxReceipt, error) {
	rng := m.rng("collect", fmt.Sprintf("%d", tokenID))
	return &TxReceipt{
		TxHash:  mockTxHash(rng),
		GasUsed: int64(80_000 + rng.Intn(70_000)),
		Amount0: fmt.Sprintf("%d", 1_000+rng.Intn(99_000)),
		Amount1: fmt.Sprintf("%d", 1_000+rng.Intn(99_000)),
	}, nil
}

func (m *MockGateway) Health(context.Context) error { return nil }

func mockTxHash(rng *rand.Rand) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return "0x" + string(buf)
}
