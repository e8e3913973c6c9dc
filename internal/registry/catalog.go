package registry

// catalog is the built-in descriptor set. TTLs reflect how quickly each
// signal decays; max ages bound how long a stale value remains servable.
var catalog = []Descriptor{
	// ---- P0: gating ----
	{
		Key: "gas_regime", Method: "get_gas_regime",
		Scope: ScopeGlobal, Priority: P0, Cost: CostCheap,
		TTLSeconds: 300, MaxAgeSeconds: 900,
		EnabledDefault: true,
		Description:    "Current gas prices and optimal execution windows",
	},
	{
		Key: "pool_health_score", Method: "get_pool_health_score",
		Scope: ScopePool, Priority: P0, Cost: CostMedium,
		TTLSeconds: 600, MaxAgeSeconds: 1800,
		EnabledDefault: true,
		Description:    "Composite pool health metric",
	},
	{
		Key: "rebalance_hint", Method: "get_rebalance_hint",
		Scope: ScopePool, Priority: P0, Cost: CostMedium,
		TTLSeconds: 600, MaxAgeSeconds: 1800,
		EnabledDefault: true,
		Description:    "Automated rebalancing signal generator",
	},

	// ---- P1: shaping ----
	{
		Key: "swaps_for_pair", Method: "get_swaps_for_pair",
		Scope: ScopeWindowed, Priority: P1, Cost: CostMedium,
		TTLSeconds: 300, MaxAgeSeconds: 1800,
		EnabledDefault: true,
		Description:    "Raw swap rows per pair over a fixed window",
	},
	{
		Key: "pool_metrics", Method: "get_pool_metrics",
		Scope: ScopeWindowed, Priority: P1, Cost: CostMedium,
		TTLSeconds: 300, MaxAgeSeconds: 1800,
		EnabledDefault: true,
		Description:    "Aggregated volume/liquidity per pool over a fixed window",
	},
	{
		Key: "dynamic_fee_analysis", Method: "get_dynamic_fee_analysis",
		Scope: ScopePool, Priority: P1, Cost: CostMedium,
		TTLSeconds: 1800, MaxAgeSeconds: 7200,
		EnabledDefault: true,
		Description:    "Fee tier performance and volume patterns",
	},
	{
		Key: "fee_tier_optimization", Method: "get_fee_tier_optimization",
		Scope: ScopePool, Priority: P1, Cost: CostMedium,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: true,
		Description:    "Fee tier profitability comparison",
	},
	{
		Key: "liquidity_depth", Method: "get_liquidity_depth",
		Scope: ScopePool, Priority: P1, Cost: CostExpensive,
		TTLSeconds: 21600, MaxAgeSeconds: 86400,
		EnabledDefault: true,
		Description:    "Tick-by-tick liquidity distribution heatmap",
	},
	{
		Key: "liquidity_competition", Method: "get_liquidity_competition",
		Scope: ScopePool, Priority: P1, Cost: CostExpensive,
		TTLSeconds: 21600, MaxAgeSeconds: 86400,
		EnabledDefault: true,
		Description:    "LP concentration and competitive positioning",
	},
	{
		Key: "arbitrage_opportunities", Method: "get_arbitrage_opportunities",
		Scope: ScopePool, Priority: P1, Cost: CostCheap,
		TTLSeconds: 300, MaxAgeSeconds: 900,
		EnabledDefault: false,
		Description:    "Cross-pool price discrepancies",
	},

	// ---- P2: risk ----
	{
		Key: "mev_risk", Method: "get_mev_risk",
		Scope: ScopePool, Priority: P2, Cost: CostMedium,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: true,
		Description:    "MEV sandwich attack frequency and protection",
	},
	{
		Key: "toxic_flow_index", Method: "get_toxic_flow_index",
		Scope: ScopePool, Priority: P2, Cost: CostMedium,
		TTLSeconds: 7200, MaxAgeSeconds: 28800,
		EnabledDefault: true,
		Description:    "Loss-versus-rebalancing estimator",
	},
	{
		Key: "jit_liquidity_monitor", Method: "get_jit_liquidity_monitor",
		Scope: ScopePool, Priority: P2, Cost: CostMedium,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: true,
		Description:    "Just-in-time liquidity attack detection",
	},
	{
		Key: "whale_sentiment", Method: "get_whale_sentiment",
		Scope: ScopePair, Priority: P2, Cost: CostMedium,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: false,
		Description:    "Large wallet activity and whale trades",
	},
	{
		Key: "order_impact", Method: "get_order_impact",
		Scope: ScopeGlobal, Priority: P2, Cost: CostMedium,
		TTLSeconds: 1800, MaxAgeSeconds: 7200,
		EnabledDefault: false,
		Description:    "Price impact predictions for order sizing",
	},
	{
		Key: "execution_quality", Method: "get_execution_quality",
		Scope: ScopeGlobal, Priority: P2, Cost: CostMedium,
		TTLSeconds: 1800, MaxAgeSeconds: 7200,
		EnabledDefault: false,
		Description:    "Slippage, fill rates, execution metrics",
	},

	// ---- P3: offline ----
	{
		Key: "impermanent_loss_tracker", Method: "get_impermanent_loss_tracker",
		Scope: ScopePool, Priority: P3, Cost: CostMedium,
		TTLSeconds: 21600, MaxAgeSeconds: 86400,
		EnabledDefault: false,
		Description:    "Impermanent loss calculations and historical trends",
	},
	{
		Key: "cross_dex_migration", Method: "get_cross_dex_migration",
		Scope: ScopePool, Priority: P3, Cost: CostMedium,
		TTLSeconds: 21600, MaxAgeSeconds: 86400,
		EnabledDefault: false,
		Description:    "Liquidity flows between DEXs",
	},
	{
		Key: "correlation_matrix", Method: "get_correlation_matrix",
		Scope: ScopePair, Priority: P3, Cost: CostMedium,
		TTLSeconds: 86400, MaxAgeSeconds: 259200,
		EnabledDefault: false,
		Description:    "Asset correlation analysis for diversification",
	},
	{
		Key: "yield_farming_opportunities", Method: "get_yield_farming_opportunities",
		Scope: ScopeGlobal, Priority: P3, Cost: CostMedium,
		TTLSeconds: 1800, MaxAgeSeconds: 7200,
		EnabledDefault: false,
		Description:    "APR/APY across pools",
	},
	{
		Key: "backtesting_data", Method: "get_backtesting_data",
		Scope: ScopeGlobal, Priority: P3, Cost: CostExpensive,
		TTLSeconds: 86400, MaxAgeSeconds: 259200,
		EnabledDefault: false,
		Description:    "Historical tick data for strategy backtesting",
	},
	{
		Key: "strategy_attribution", Method: "get_strategy_attribution",
		Scope: ScopeGlobal, Priority: P3, Cost: CostMedium,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: false,
		Description:    "Performance breakdown by strategy",
	},
	{
		Key: "portfolio_allocation", Method: "get_portfolio_allocation",
		Scope: ScopeGlobal, Priority: P3, Cost: CostMedium,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: false,
		Description:    "Optimal capital allocation across pools",
	},
	{
		Key: "dynamic_config", Method: "get_dynamic_config",
		Scope: ScopeGlobal, Priority: P3, Cost: CostCheap,
		TTLSeconds: 3600, MaxAgeSeconds: 14400,
		EnabledDefault: false,
		Description:    "Tuned strategy configuration generator",
	},
}
