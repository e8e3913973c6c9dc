package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPool = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"

func TestMockGateway_PoolInfoDeterministic(t *testing.T) {
	a, err := NewMockGateway(42).PoolInfo(context.Background(), "ethereum", "mainnet", "uniswap_v3_clmm", testPool)
	require.NoError(t, err)
	b, err := NewMockGateway(42).PoolInfo(context.Background(), "ethereum", "mainnet", "uniswap_v3_clmm", testPool)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMockGateway_TickSnappedToSpacing(t *testing.T) {
	info, err := NewMockGateway(42).PoolInfo(context.Background(), "ethereum", "mainnet", "uniswap_v3_clmm", testPool)
	require.NoError(t, err)
	assert.Zero(t, info.Tick%info.TickSpacing)
}

func TestMockGateway_DifferentPoolsDiffer(t *testing.T) {
	gw := NewMockGateway(42)
	a, _ := gw.PoolInfo(context.Background(), "ethereum", "mainnet", "uniswap_v3_clmm", "0xaaa")
	b, _ := gw.PoolInfo(context.Background(), "ethereum", "mainnet", "uniswap_v3_clmm", "0xbbb")
	assert.NotEqual(t, a.SqrtPriceX96, b.SqrtPriceX96)
}

func TestMockGateway_QuoteSimulate(t *testing.T) {
	gw := NewMockGateway(42)
	quote, err := gw.QuotePosition(context.Background(), QuoteRequest{
		Pool: testPool, LowerPrice: 0.95, UpperPrice: 1.05, AmountUSD: 10_000, Simulate: true,
	})
	require.NoError(t, err)
	assert.True(t, quote.Success)
	assert.True(t, quote.SimulationSuccess)
	assert.Greater(t, quote.AmountOut, int64(0))
	assert.Equal(t, "mock", quote.Source)
}

func TestMockGateway_HealthAlwaysOK(t *testing.T) {
	assert.NoError(t, NewMockGateway(42).Health(context.Background()))
}
