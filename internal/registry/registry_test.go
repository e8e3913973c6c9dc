package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	r := MustNew()

	gas, ok := r.Get("gas_regime")
	require.True(t, ok)
	assert.Equal(t, ScopeGlobal, gas.Scope)
	assert.Equal(t, P0, gas.Priority)
	assert.Equal(t, 300, gas.TTLSeconds)
	assert.Equal(t, 900, gas.MaxAgeSeconds)
	assert.True(t, gas.EnabledDefault)

	_, ok = r.Get("nonexistent_query")
	assert.False(t, ok)
}

func TestRegistry_EnabledSorted(t *testing.T) {
	r := MustNew()

	enabled := r.Enabled()
	require.NotEmpty(t, enabled)
	for i := 1; i < len(enabled); i++ {
		assert.Less(t, enabled[i-1].Key, enabled[i].Key)
	}
	for _, d := range enabled {
		assert.True(t, d.EnabledDefault)
	}
}

func TestRegistry_Overrides(t *testing.T) {
	r, err := New(map[string]bool{
		"whale_sentiment": true,
		"gas_regime":      false,
	})
	require.NoError(t, err)

	whale, _ := r.Get("whale_sentiment")
	assert.True(t, whale.EnabledDefault)
	gas, _ := r.Get("gas_regime")
	assert.False(t, gas.EnabledDefault)
}

func TestRegistry_UnknownOverrideRejected(t *testing.T) {
	_, err := New(map[string]bool{"typo_query": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "typo_query")
}

func TestRegistry_WindowedDescriptors(t *testing.T) {
	r := MustNew()

	keys := make([]string, 0)
	for _, d := range r.Enabled() {
		if d.Scope == ScopeWindowed {
			keys = append(keys, d.Key)
		}
	}
	assert.ElementsMatch(t, []string{"pool_metrics", "swaps_for_pair"}, keys)
}

func TestRanks(t *testing.T) {
	assert.Less(t, PriorityRank(P0), PriorityRank(P1))
	assert.Less(t, PriorityRank(P1), PriorityRank(P2))
	assert.Less(t, PriorityRank(P2), PriorityRank(P3))
	assert.Less(t, CostRank(CostCheap), CostRank(CostMedium))
	assert.Less(t, CostRank(CostMedium), CostRank(CostExpensive))
}
