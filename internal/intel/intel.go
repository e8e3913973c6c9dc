// Package intel is the cache-first intelligence facade consumed
// synchronously by the agent and the harness. Accessors never issue a
// network call: data comes from the envelope store or not at all, and
// every read is recorded in the instance's freshness snapshot.
package intel

import (
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
	"github.com/duffmahn/hummingbot-track-a/internal/qualitykv"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
)

// Rows mirrors the backend row shape as stored in envelopes.
type Rows []map[string]any

// Intelligence reads envelopes and tags each answer with its freshness.
type Intelligence struct {
	store  *qualitykv.Store
	reg    *registry.Registry
	logger *slog.Logger

	triggerPath string
	nowFn       func() time.Time

	mu       sync.Mutex
	snapshot model.IntelSnapshot
}

type Option func(*Intelligence)

// WithTriggerPath lets accessors append advisory refresh triggers for the
// background scheduler.
func WithTriggerPath(path string) Option {
	return func(i *Intelligence) { i.triggerPath = path }
}

func WithNowFn(fn func() time.Time) Option {
	return func(i *Intelligence) { i.nowFn = fn }
}

func New(store *qualitykv.Store, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Intelligence {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Intelligence{
		store:    store,
		reg:      reg,
		logger:   logger.With("component", "intel"),
		nowFn:    time.Now,
		snapshot: make(model.IntelSnapshot),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// getRows reads the envelope for (key, params), computes freshness from
// the registry descriptor, and records the read under snapKey. Data is
// only served while fresh or stale; too_old and missing return nil rows.
func (i *Intelligence) getRows(key, snapKey string, params map[string]string) (Rows, model.QualityRecord) {
	desc, ok := i.reg.Get(key)
	if !ok {
		rec := model.MissingQuality()
		i.record(snapKey, rec)
		return nil, rec
	}

	env, rec := i.store.GetQuality(
		CanonicalKey(key, params),
		time.Duration(desc.TTLSeconds)*time.Second,
		time.Duration(desc.MaxAgeSeconds)*time.Second,
	)
	i.record(snapKey, rec)
	metrics.IntelReadsTotal.WithLabelValues(key, rec.Quality.String()).Inc()

	if rec.Quality == model.QualityMissing || rec.Quality == model.QualityTooOld {
		return nil, rec
	}

	var rows Rows
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		i.logger.Warn("undecodable envelope payload", "query", key, "error", err)
		return nil, rec
	}
	return rows, rec
}

func (i *Intelligence) record(snapKey string, rec model.QualityRecord) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snapshot[snapKey] = rec
}

// ResetSnapshot clears the recorded reads. The orchestrator calls this
// at the start of every episode so the snapshot it captures reflects
// only that episode's decision-time reads, even when pools and pairs
// change between episodes.
func (i *Intelligence) ResetSnapshot() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snapshot = make(model.IntelSnapshot)
}

// Snapshot returns a copy of every read recorded so far. The harness
// extracts this after the decision step and writes it to metadata.
func (i *Intelligence) Snapshot() model.IntelSnapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(model.IntelSnapshot, len(i.snapshot))
	for k, v := range i.snapshot {
		out[k] = v
	}
	return out
}

// Hygiene summarizes the current snapshot.
func (i *Intelligence) Hygiene() model.IntelHygiene {
	return model.HygieneFromSnapshot(i.Snapshot())
}

// ---- accessors ----

// Volatility computes annualized realized volatility from the cached swap
// tape for the pair. Insufficient data yields zero with the observed
// freshness.
func (i *Intelligence) Volatility(pair string, windowMinutes int) (float64, model.QualityRecord) {
	window := WindowFromMinutes(windowMinutes)
	rows, rec := i.getRows("swaps_for_pair",
		snapshotKey("swaps_for_pair", pair, window),
		map[string]string{"pair": pair, "window": window},
	)

	swaps := dominantPool(rows)
	if len(swaps) < 10 {
		return 0, rec
	}

	var sumSq float64
	var n int
	for idx := 1; idx < len(swaps); idx++ {
		s1 := toFloat(swaps[idx-1]["sqrt_price_x96"])
		s2 := toFloat(swaps[idx]["sqrt_price_x96"])
		if s1 <= 0 || s2 <= 0 {
			continue
		}
		r := 2 * math.Log(s2/s1)
		sumSq += r * r
		n++
	}
	if n == 0 {
		return 0, rec
	}

	stdDev := math.Sqrt(sumSq / float64(n))
	periodsPerYear := float64(365*24*60) / math.Max(1, float64(windowMinutes))
	return stdDev * math.Sqrt(periodsPerYear), rec
}

// PoolHealth is the composite health view for a pool.
type PoolHealth struct {
	Volatility   float64   `json:"volatility"`
	Volume       float64   `json:"volume"`
	AvgLiquidity float64   `json:"avg_liquidity"`
	Tradeable    bool      `json:"tradeable"`
	Reason       string    `json:"reason"`
	MarketRegime string    `json:"market_regime"`
	Timestamp    time.Time `json:"timestamp"`
}

// GetPoolHealth combines cached pool metrics and pair volatility into the
// tradeability gate used by the agent and harness.
func (i *Intelligence) GetPoolHealth(pool, pair string, lookbackHours int) (PoolHealth, model.QualityRecord) {
	window := WindowFromHours(lookbackHours)
	rows, rec := i.getRows("pool_metrics",
		snapshotKey("pool_metrics", pool, window),
		map[string]string{"pool": pool, "window": window},
	)

	var volume, avgLiquidity float64
	if len(rows) > 0 {
		volume = toFloat(rows[0]["total_volume0"])
		avgLiquidity = toFloat(rows[0]["avg_liquidity"])
	}

	volatility, _ := i.Volatility(pair, lookbackHours*60)

	health := PoolHealth{
		Volatility:   volatility,
		Volume:       volume,
		AvgLiquidity: avgLiquidity,
		Tradeable:    true,
		Reason:       "Market conditions favorable",
		MarketRegime: classifyRegime(volatility, avgLiquidity),
		Timestamp:    i.nowFn().UTC(),
	}

	switch {
	case volatility > 2.0:
		health.Tradeable = false
		health.Reason = "Volatility too high"
	case avgLiquidity < 1e6 && volume < 1e5:
		health.Tradeable = false
		health.Reason = "Liquidity & volume too low"
	case volume < 1e4:
		health.Tradeable = false
		health.Reason = "Volume too low (dead pool)"
	}
	return health, rec
}

// GetLiquidityHeatmap returns the tick-by-tick liquidity distribution.
func (i *Intelligence) GetLiquidityHeatmap(pool string) ([]map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("liquidity_depth",
		snapshotKey("liquidity_depth", pool),
		map[string]string{"pool": pool},
	)
	return rows, rec
}

// GetGasRegime returns the current gas signal row.
func (i *Intelligence) GetGasRegime() (map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("gas_regime", snapshotKey("gas_regime"), nil)
	return firstRow(rows), rec
}

// GetMevRisk returns sandwich-risk data for the pool. With no data the
// risk defaults to LOW so a cold cache never blocks mock runs.
func (i *Intelligence) GetMevRisk(pool string) (map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("mev_risk",
		snapshotKey("mev_risk", pool),
		map[string]string{"pool": pool},
	)
	row := firstRow(rows)
	if row == nil {
		row = map[string]any{"risk_level": "LOW", "reason": "no data"}
	}
	return row, rec
}

// GetWhaleSentiment returns large-wallet flow data for the pair.
func (i *Intelligence) GetWhaleSentiment(pair string) (map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("whale_sentiment",
		snapshotKey("whale_sentiment", pair),
		map[string]string{"pair": pair},
	)
	return firstRow(rows), rec
}

// GetPoolHealthScore returns the composite score row for the pool.
func (i *Intelligence) GetPoolHealthScore(pool string) (map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("pool_health_score",
		snapshotKey("pool_health_score", pool),
		map[string]string{"pool": pool},
	)
	return firstRow(rows), rec
}

// GetRangeHint returns the rebalancing signal row for the pool.
func (i *Intelligence) GetRangeHint(pool string) (map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("rebalance_hint",
		snapshotKey("rebalance_hint", pool),
		map[string]string{"pool": pool},
	)
	return firstRow(rows), rec
}

// GetDynamicConfig returns the tuned strategy configuration row.
func (i *Intelligence) GetDynamicConfig() (map[string]any, model.QualityRecord) {
	rows, rec := i.getRows("dynamic_config", snapshotKey("dynamic_config"), nil)
	return firstRow(rows), rec
}

// TriggerRefresh appends an advisory trigger for the background
// scheduler. Best-effort: a failed append is logged, never fatal.
func (i *Intelligence) TriggerRefresh(reason, pool, pair string) {
	if i.triggerPath == "" {
		return
	}
	trig := model.Trigger{
		Timestamp: i.nowFn().UTC(),
		Reason:    reason,
		Pool:      pool,
		Pair:      pair,
	}
	line, err := json.Marshal(trig)
	if err != nil {
		i.logger.Warn("marshal trigger", "error", err)
		return
	}
	f, err := os.OpenFile(i.triggerPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		i.logger.Warn("append trigger", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		i.logger.Warn("write trigger", "error", err)
	}
}

// ---- helpers ----

func classifyRegime(volatility, liquidity float64) string {
	volStr := "low_vol"
	if volatility > 1.0 {
		volStr = "high_vol"
	}
	liqStr := "low_liquidity"
	if liquidity > 1e7 {
		liqStr = "high_liquidity"
	}
	return volStr + "_" + liqStr
}

// dominantPool keeps only swaps from the most frequent pool_id, when the
// tape mixes pools.
func dominantPool(rows Rows) Rows {
	if len(rows) == 0 {
		return rows
	}
	if _, ok := rows[0]["pool_id"]; !ok {
		return rows
	}
	counts := make(map[string]int)
	for _, row := range rows {
		if id, ok := row["pool_id"].(string); ok && id != "" {
			counts[id]++
		}
	}
	var dominant string
	var best int
	for id, n := range counts {
		if n > best || (n == best && id < dominant) {
			dominant, best = id, n
		}
	}
	if dominant == "" {
		return rows
	}
	filtered := make(Rows, 0, len(rows))
	for _, row := range rows {
		if id, _ := row["pool_id"].(string); id == dominant {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func firstRow(rows Rows) map[string]any {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return 0
}
