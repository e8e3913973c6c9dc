// Package validator gates real-mode proposals on hard bounds before any
// capital-touching call is made.
package validator

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
)

// ErrValidation marks proposals violating hard bounds. Non-retried.
var ErrValidation = errors.New("validation error")

// Recognized chains and their networks.
var validChains = map[string][]string{
	"ethereum":  {"mainnet", "sepolia"},
	"arbitrum":  {"mainnet"},
	"optimism":  {"mainnet"},
	"polygon":   {"mainnet"},
	"base":      {"mainnet"},
	"avalanche": {"mainnet"},
	"bsc":       {"mainnet"},
}

var poolAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Documented parameter bounds for real execution.
const (
	maxSpreadBps             = 500.0
	minRefreshIntervalS      = 10
	maxRefreshIntervalS      = 3600
	maxRangeWidthPct         = 50.0
	maxRebalanceThresholdPct = 50.0
)

// Validate enforces the real-mode gate. Mock-mode proposals pass
// untouched; the DISABLE_POOL_VALIDATION escape hatch exists for testing
// and skips only the chain/pool checks, never the numeric bounds.
func Validate(p *model.Proposal, execMode model.ExecMode, vcfg config.ValidatorConfig) error {
	if execMode == model.ExecModeMock {
		return nil
	}

	if err := validateNumbers(p.Params); err != nil {
		return err
	}

	if vcfg.DisablePoolValidation {
		return nil
	}

	networks, ok := validChains[p.Chain]
	if !ok {
		return fmt.Errorf("%w: unrecognized chain %q", ErrValidation, p.Chain)
	}
	networkOK := false
	for _, n := range networks {
		if n == p.Network {
			networkOK = true
			break
		}
	}
	if !networkOK {
		return fmt.Errorf("%w: invalid network %q for chain %q", ErrValidation, p.Network, p.Chain)
	}

	if p.PoolAddress == "" {
		return fmt.Errorf("%w: missing pool_address", ErrValidation)
	}
	if !poolAddressPattern.MatchString(p.PoolAddress) {
		return fmt.Errorf("%w: malformed pool_address %q", ErrValidation, p.PoolAddress)
	}
	if p.Connector != model.DefaultConnector {
		return fmt.Errorf("%w: unsupported connector %q", ErrValidation, p.Connector)
	}
	return nil
}

func validateNumbers(params model.ProposalParams) error {
	values := map[string]float64{
		"range_width_pct":         params.RangeWidthPct,
		"spread_bps":              params.SpreadBps,
		"order_size_usd":          params.OrderSizeUSD,
		"rebalance_threshold_pct": params.RebalanceThresholdPct,
		"max_position_usd":        params.MaxPositionUSD,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrValidation, name)
		}
	}

	if params.SpreadBps <= 0 || params.SpreadBps > maxSpreadBps {
		return fmt.Errorf("%w: spread_bps %.1f outside (0, %.0f]", ErrValidation, params.SpreadBps, maxSpreadBps)
	}
	if params.RangeWidthPct <= 0 || params.RangeWidthPct > maxRangeWidthPct {
		return fmt.Errorf("%w: range_width_pct %.2f outside (0, %.0f]", ErrValidation, params.RangeWidthPct, maxRangeWidthPct)
	}
	if params.RefreshIntervalS < minRefreshIntervalS || params.RefreshIntervalS > maxRefreshIntervalS {
		return fmt.Errorf("%w: refresh_interval_s %d outside [%d, %d]", ErrValidation, params.RefreshIntervalS, minRefreshIntervalS, maxRefreshIntervalS)
	}
	if params.RebalanceThresholdPct <= 0 || params.RebalanceThresholdPct > maxRebalanceThresholdPct {
		return fmt.Errorf("%w: rebalance_threshold_pct %.2f outside (0, %.0f]", ErrValidation, params.RebalanceThresholdPct, maxRebalanceThresholdPct)
	}
	if params.OrderSizeUSD <= 0 {
		return fmt.Errorf("%w: order_size_usd must be positive", ErrValidation)
	}
	if params.MaxPositionUSD <= 0 {
		return fmt.Errorf("%w: max_position_usd must be positive", ErrValidation)
	}
	if params.OrderSizeUSD > params.MaxPositionUSD {
		return fmt.Errorf("%w: order_size_usd %.2f exceeds max_position_usd %.2f", ErrValidation, params.OrderSizeUSD, params.MaxPositionUSD)
	}
	return nil
}
