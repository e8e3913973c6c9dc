package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolInfoCache_BasicGetPut(t *testing.T) {
	c := newPoolInfoCache(4, time.Minute)

	c.put("a", &PoolInfo{Tick: 60})
	info, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 60, info.Tick)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestPoolInfoCache_TTLExpiration(t *testing.T) {
	c := newPoolInfoCache(4, time.Minute)
	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.put("a", &PoolInfo{Tick: 60})
	_, ok := c.get("a")
	require.True(t, ok)

	c.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok = c.get("a")
	assert.False(t, ok, "entry should have expired")
}

func TestPoolInfoCache_Eviction(t *testing.T) {
	c := newPoolInfoCache(2, time.Minute)

	c.put("a", &PoolInfo{Tick: 1})
	c.put("b", &PoolInfo{Tick: 2})
	c.get("a") // make "a" recently used
	c.put("c", &PoolInfo{Tick: 3})

	_, ok := c.get("b")
	assert.False(t, ok, "least recently used entry evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
}
