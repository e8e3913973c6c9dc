package analytics

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
)

// MockBackend produces deterministic rows for every catalog method. The
// row content for a given (seed, method, params) tuple is stable across
// calls, which keeps replay runs byte-identical.
type MockBackend struct {
	seed int64
}

func NewMockBackend(seed int64) *MockBackend {
	if seed == 0 {
		seed = 42
	}
	return &MockBackend{seed: seed}
}

func (m *MockBackend) Query(_ context.Context, method string, params map[string]string) (Rows, error) {
	rng := rand.New(rand.NewSource(m.deriveSeed(method, params)))

	switch method {
	case "get_gas_regime":
		return Rows{{
			"median_gwei":   5 + rng.Intn(60),
			"fast_gwei":     10 + rng.Intn(90),
			"regime":        pick(rng, "low", "normal", "spike"),
			"optimal_hours": []any{2, 3, 4},
		}}, nil
	case "get_swaps_for_pair":
		return m.swapRows(rng, params), nil
	case "get_pool_metrics":
		return Rows{{
			"pool_address":  params["pool"],
			"avg_liquidity": 1e6 + rng.Float64()*9e6,
			"total_volume0": 1e5 + rng.Float64()*9e5,
			"total_volume1": 1e5 + rng.Float64()*9e5,
			"swap_count":    20 + rng.Intn(400),
			"price":         1500 + rng.Float64()*2000,
		}}, nil
	case "get_pool_health_score":
		return Rows{{
			"score":  40 + rng.Intn(60),
			"status": pick(rng, "healthy", "degraded"),
		}}, nil
	case "get_rebalance_hint":
		return Rows{{
			"action":     pick(rng, "hold", "recenter", "widen"),
			"confidence": rng.Float64(),
		}}, nil
	case "get_mev_risk":
		return Rows{{
			"risk_level":     pick(rng, "LOW", "MEDIUM", "HIGH"),
			"sandwich_count": rng.Intn(25),
		}}, nil
	case "get_whale_sentiment":
		return Rows{{
			"net_flow_usd": -5e5 + rng.Float64()*1e6,
			"whale_trades": rng.Intn(40),
		}}, nil
	case "get_liquidity_depth":
		rows := make(Rows, 0, 16)
		for i := 0; i < 16; i++ {
			rows = append(rows, map[string]any{
				"tick":      -960 + i*120,
				"liquidity": 1e5 + rng.Float64()*1e6,
			})
		}
		return rows, nil
	case "get_dynamic_config":
		return Rows{{
			"range_width_pct":  0.5 + rng.Float64()*4.5,
			"refresh_interval": 60 * (1 + rng.Intn(10)),
			"max_position_usd": 1e4 * float64(1+rng.Intn(9)),
		}}, nil
	default:
		if _, ok := genericMethods[method]; ok {
			return Rows{{"value": rng.Float64(), "bucket": pick(rng, "low", "mid", "high")}}, nil
		}
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

// swapRows generates a plausible swap tape: a random walk in
// sqrt_price_x96 with per-row volumes.
func (m *MockBackend) swapRows(rng *rand.Rand, params map[string]string) Rows {
	count := 30 + rng.Intn(90)
	price := 1.0e27 * (1 + rng.Float64())
	rows := make(Rows, 0, count)
	for i := 0; i < count; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.004
		rows = append(rows, map[string]any{
			"pool_id":        params["pool"],
			"sqrt_price_x96": fmt.Sprintf("%.0f", price),
			"amount0":        rng.Float64() * 10,
			"amount1":        rng.Float64() * 20000,
			"liquidity":      1e6 + rng.Float64()*1e7,
		})
	}
	return rows
}

var genericMethods = map[string]struct{}{
	"get_dynamic_fee_analysis":        {},
	"get_fee_tier_optimization":       {},
	"get_liquidity_competition":       {},
	"get_toxic_flow_index":            {},
	"get_jit_liquidity_monitor":       {},
	"get_order_impact":                {},
	"get_execution_quality":           {},
	"get_impermanent_loss_tracker":    {},
	"get_cross_dex_migration":         {},
	"get_correlation_matrix":          {},
	"get_yield_farming_opportunities": {},
	"get_backtesting_data":            {},
	"get_strategy_attribution":        {},
	"get_portfolio_allocation":        {},
	"get_arbitrage_opportunities":     {},
}

func (m *MockBackend) deriveSeed(method string, params map[string]string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s", m.seed, method)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, params[k])
	}
	return int64(h.Sum64())
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}
