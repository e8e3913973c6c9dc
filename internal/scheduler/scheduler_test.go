package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/analytics"
	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
	"github.com/duffmahn/hummingbot-track-a/internal/qualitykv"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPool = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"

// fakeCaller records queries and answers from a canned function.
type fakeCaller struct {
	mu     sync.Mutex
	calls  []string
	answer func(method string, params map[string]string) (analytics.Rows, error)
}

func (f *fakeCaller) Query(_ context.Context, method string, params map[string]string) (analytics.Rows, error) {
	f.mu.Lock()
	f.calls = append(f.calls, intel.CanonicalKey(methodToKey(method), params))
	f.mu.Unlock()
	if f.answer != nil {
		return f.answer(method, params)
	}
	return analytics.Rows{{"value": 1.0}}, nil
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func methodToKey(method string) string {
	return method[len("get_"):]
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PoolCap:          3,
		WorkerCount:      2,
		TickInterval:     time.Second,
		JobTimeout:       5 * time.Second,
		DrainGrace:       time.Second,
		TriggerHorizon:   10 * time.Minute,
		QueueCap:         64,
		ExpensivePerTick: 1,
		ExpensiveMode:    config.BudgetHard,
	}
}

func newTestScheduler(t *testing.T, caller analytics.Caller, opts ...Option) (*Scheduler, *qualitykv.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := qualitykv.Open(filepath.Join(dir, "envelopes.json"))
	require.NoError(t, err)
	triggerPath := filepath.Join(dir, "triggers.jsonl")

	base := []Option{WithActivePools([]string{testPool}), WithActivePairs([]string{"WETH-USDC"})}
	s := New(testSchedulerConfig(), registry.MustNew(), store, caller, dir, triggerPath, nil, append(base, opts...)...)
	return s, store, triggerPath
}

func TestTick_RefreshesMissingEntries(t *testing.T) {
	caller := &fakeCaller{}
	s, store, _ := newTestScheduler(t, caller)

	stats := s.Tick(context.Background())
	assert.Greater(t, stats.Dispatched, 0)
	assert.Equal(t, stats.Dispatched, stats.Succeeded)
	assert.Zero(t, stats.Failed)

	env, ok := store.Get("gas_regime()")
	require.True(t, ok)
	assert.True(t, env.OK)
	assert.Equal(t, 300, env.TTLSeconds)
}

func TestTick_SkipsFreshEntries(t *testing.T) {
	caller := &fakeCaller{}
	s, _, _ := newTestScheduler(t, caller)

	first := s.Tick(context.Background())
	require.Greater(t, first.Succeeded, 0)

	// The budget-deferred expensive item lands on the second tick.
	s.Tick(context.Background())
	callsAfterWarm := caller.callCount()

	third := s.Tick(context.Background())
	assert.Zero(t, third.Dispatched, "everything is fresh after the warm-up ticks")
	assert.Equal(t, callsAfterWarm, caller.callCount())
}

func TestTick_StaleWhileRevalidate(t *testing.T) {
	// Pre-seed a good envelope at 2x TTL, then refresh against a backend
	// that always errors: the envelope must remain readable and stale.
	caller := &fakeCaller{answer: func(string, map[string]string) (analytics.Rows, error) {
		return nil, errors.New("backend down")
	}}
	s, store, _ := newTestScheduler(t, caller)

	data, _ := json.Marshal(analytics.Rows{{"median_gwei": 25.0}})
	fetchedAt := time.Now().UTC().Add(-600 * time.Second) // 2x the 300s TTL
	require.NoError(t, store.Set("gas_regime()", model.Envelope{
		OK:            true,
		Data:          data,
		FetchedAt:     fetchedAt,
		TTLSeconds:    300,
		MaxAgeSeconds: 900,
		Source:        "seed",
	}))

	stats := s.Tick(context.Background())
	assert.Greater(t, stats.Failed, 0)

	env, ok := store.Get("gas_regime()")
	require.True(t, ok)
	assert.True(t, env.OK, "failed refresh must not clobber the good envelope")
	assert.True(t, env.FetchedAt.Equal(fetchedAt))

	_, rec := store.GetQuality("gas_regime()", 300*time.Second, 900*time.Second)
	assert.Equal(t, model.QualityStale, rec.Quality)
	require.NotNil(t, rec.AgeSeconds)
	assert.GreaterOrEqual(t, *rec.AgeSeconds, int64(600))
}

func TestTick_EmptyActivePoolsSkipsPoolScope(t *testing.T) {
	caller := &fakeCaller{}
	dir := t.TempDir()
	store, err := qualitykv.Open(filepath.Join(dir, "envelopes.json"))
	require.NoError(t, err)
	s := New(testSchedulerConfig(), registry.MustNew(), store, caller, dir, "", nil)

	stats := s.Tick(context.Background())
	// Only the global-scoped enabled query (gas_regime) is planned.
	assert.Equal(t, 1, stats.Dispatched)
	_, ok := store.Get("gas_regime()")
	assert.True(t, ok)
}

func TestTick_TriggerForcesRefresh(t *testing.T) {
	caller := &fakeCaller{}
	s, store, triggerPath := newTestScheduler(t, caller)

	// Warm everything so nothing is due (the second tick picks up the
	// budget-deferred expensive item).
	s.Tick(context.Background())
	s.Tick(context.Background())
	require.Zero(t, s.Tick(context.Background()).Dispatched)

	before, ok := store.Get(intel.CanonicalKey("pool_metrics", map[string]string{"pool": testPool, "window": "1h"}))
	require.True(t, ok)

	trig := model.Trigger{
		Timestamp: time.Now().UTC(),
		Reason:    "out_of_range",
		Pool:      testPool,
	}
	appendTrigger(t, triggerPath, trig)

	time.Sleep(10 * time.Millisecond) // let fetched_at advance
	stats := s.Tick(context.Background())
	assert.Greater(t, stats.Dispatched, 0)
	assert.Equal(t, 1, stats.Triggers)

	after, ok := store.Get(intel.CanonicalKey("pool_metrics", map[string]string{"pool": testPool, "window": "1h"}))
	require.True(t, ok)
	assert.True(t, after.FetchedAt.After(before.FetchedAt), "trigger must force a newer envelope")
}

func TestTick_TriggerUnknownKeyIgnored(t *testing.T) {
	caller := &fakeCaller{}
	s, _, triggerPath := newTestScheduler(t, caller)
	s.Tick(context.Background())
	s.Tick(context.Background())

	appendTrigger(t, triggerPath, model.Trigger{
		Timestamp: time.Now().UTC(),
		Reason:    "manual",
		QueryKey:  "no_such_query",
	})

	stats := s.Tick(context.Background())
	assert.Zero(t, stats.Triggers)
	assert.Zero(t, stats.Dispatched)
}

func TestTick_TriggerPastHorizonDiscarded(t *testing.T) {
	caller := &fakeCaller{}
	s, _, triggerPath := newTestScheduler(t, caller)
	s.Tick(context.Background())

	appendTrigger(t, triggerPath, model.Trigger{
		Timestamp: time.Now().UTC().Add(-time.Hour),
		Reason:    "out_of_range",
		Pool:      testPool,
	})

	stats := s.Tick(context.Background())
	assert.Zero(t, stats.Triggers)
}

func TestTick_MalformedTriggerLineSkipped(t *testing.T) {
	caller := &fakeCaller{}
	s, _, triggerPath := newTestScheduler(t, caller)
	s.Tick(context.Background())

	require.NoError(t, os.WriteFile(triggerPath, []byte("{not json\n"), 0o644))
	appendTrigger(t, triggerPath, model.Trigger{
		Timestamp: time.Now().UTC(),
		Reason:    "out_of_range",
		Pool:      testPool,
	})

	stats := s.Tick(context.Background())
	assert.Equal(t, 1, stats.Triggers, "valid trigger after the malformed line still applies")
}

func TestTick_TriggerLogTruncatedAfterDrain(t *testing.T) {
	caller := &fakeCaller{}
	s, _, triggerPath := newTestScheduler(t, caller)

	appendTrigger(t, triggerPath, model.Trigger{Timestamp: time.Now().UTC(), Reason: "x", Pool: testPool})
	s.Tick(context.Background())

	raw, err := os.ReadFile(triggerPath)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestTick_ExpensiveBudgetHard(t *testing.T) {
	caller := &fakeCaller{}
	s, store, _ := newTestScheduler(t, caller)

	stats := s.Tick(context.Background())
	// Two expensive P1 descriptors (liquidity_depth, liquidity_competition)
	// expand over one pool; the hard budget of 1 defers one of them.
	assert.Equal(t, 1, stats.Deferred)

	depth, depthOK := store.Get(intel.CanonicalKey("liquidity_depth", map[string]string{"pool": testPool}))
	comp, compOK := store.Get(intel.CanonicalKey("liquidity_competition", map[string]string{"pool": testPool}))
	refreshed := 0
	if depthOK && depth.OK {
		refreshed++
	}
	if compOK && comp.OK {
		refreshed++
	}
	assert.Equal(t, 1, refreshed, "exactly one expensive item per tick")
}

func TestTick_ExpensiveBudgetSoft(t *testing.T) {
	caller := &fakeCaller{}
	cfg := testSchedulerConfig()
	cfg.ExpensiveMode = config.BudgetSoft

	dir := t.TempDir()
	store, err := qualitykv.Open(filepath.Join(dir, "envelopes.json"))
	require.NoError(t, err)
	s := New(cfg, registry.MustNew(), store, caller, dir, "", nil,
		WithActivePools([]string{testPool}), WithActivePairs([]string{"WETH-USDC"}))

	stats := s.Tick(context.Background())
	assert.Zero(t, stats.Deferred, "soft mode dispatches past the cap")
}

func TestTick_QueueCapDropsSurplus(t *testing.T) {
	caller := &fakeCaller{}
	cfg := testSchedulerConfig()
	cfg.QueueCap = 3

	dir := t.TempDir()
	store, err := qualitykv.Open(filepath.Join(dir, "envelopes.json"))
	require.NoError(t, err)
	s := New(cfg, registry.MustNew(), store, caller, dir, "", nil,
		WithActivePools([]string{testPool}), WithActivePairs([]string{"WETH-USDC"}))

	stats := s.Tick(context.Background())
	assert.Equal(t, 3, stats.Dispatched)
	assert.Greater(t, stats.Dropped, 0)
}

func TestTick_PriorityOrdering(t *testing.T) {
	caller := &fakeCaller{}
	s, _, _ := newTestScheduler(t, caller)

	s.Tick(context.Background())

	caller.mu.Lock()
	defer caller.mu.Unlock()
	require.NotEmpty(t, caller.calls)

	// With everything missing, the first dispatched keys are P0. Worker
	// interleaving can reorder within the pool, so only check membership
	// of the first dispatch.
	p0Keys := map[string]bool{
		"gas_regime()": true,
		intel.CanonicalKey("pool_health_score", map[string]string{"pool": testPool}): true,
		intel.CanonicalKey("rebalance_hint", map[string]string{"pool": testPool}):    true,
	}
	assert.True(t, p0Keys[caller.calls[0]], "first dispatched item %q should be P0", caller.calls[0])
}

func TestRunForever_StopsOnCancel(t *testing.T) {
	caller := &fakeCaller{}
	s, _, _ := newTestScheduler(t, caller)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunForever(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestActiveScope_FromRecentEpisodes(t *testing.T) {
	caller := &fakeCaller{}
	dir := t.TempDir()
	store, err := qualitykv.Open(filepath.Join(dir, "envelopes.json"))
	require.NoError(t, err)
	s := New(testSchedulerConfig(), registry.MustNew(), store, caller, dir, "", nil)

	// Lay out a run with two episodes proposing different pools.
	runID := "run_20260301_120000"
	for i, pool := range []string{"0xaaa", "0xbbb"} {
		epDir := filepath.Join(dir, "runs", runID, "episodes", fmt.Sprintf("ep_20260301_1200%02d_%d", i, i+1))
		require.NoError(t, os.MkdirAll(epDir, 0o755))
		proposal := model.Proposal{
			EpisodeID:   fmt.Sprintf("ep_20260301_1200%02d_%d", i, i+1),
			Status:      model.ProposalActive,
			PoolAddress: pool,
		}
		raw, _ := json.Marshal(proposal)
		require.NoError(t, os.WriteFile(filepath.Join(epDir, "proposal.json"), raw, 0o644))
	}

	scope := s.activeScope(nil)
	assert.ElementsMatch(t, []string{"0xaaa", "0xbbb"}, scope.pools)
	assert.Equal(t, []string{"WETH-USDC"}, scope.pairs)
}

func TestActiveScope_TriggerJoinsScope(t *testing.T) {
	caller := &fakeCaller{}
	s, _, _ := newTestScheduler(t, caller)

	scope := s.activeScope([]model.Trigger{{
		Timestamp: time.Now().UTC(),
		Reason:    "out_of_range",
		Pool:      "0xccc",
	}})
	assert.Contains(t, scope.pools, testPool)
	assert.Contains(t, scope.pools, "0xccc")
}

func TestActiveScope_CapApplied(t *testing.T) {
	caller := &fakeCaller{}
	s, _, _ := newTestScheduler(t, caller, WithActivePools([]string{"0x1", "0x2", "0x3", "0x4", "0x5"}))

	scope := s.activeScope(nil)
	assert.Len(t, scope.pools, 3)
}

func appendTrigger(t *testing.T, path string, trig model.Trigger) {
	t.Helper()
	raw, err := json.Marshal(trig)
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(append(raw, '\n'))
	require.NoError(t, err)
}
