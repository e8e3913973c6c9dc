// Package reward derives the learning signal from an episode result.
package reward

import "github.com/duffmahn/hummingbot-track-a/internal/domain/model"

const outOfRangePenaltyWeight = 10.0

// Compute decomposes the episode reward: realized P&L plus fees, minus
// gas and an out-of-range penalty.
func Compute(result *model.EpisodeResult) model.RewardBreakdown {
	components := map[string]float64{
		"pnl":           result.PnLUSD,
		"fees":          result.FeesUSD,
		"gas_penalty":   -result.GasCostUSD,
		"range_penalty": -result.OutOfRangePct * outOfRangePenaltyWeight,
	}
	var total float64
	for _, v := range components {
		total += v
	}
	return model.RewardBreakdown{Total: total, Components: components}
}
