package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvMock, cfg.Environment)
	assert.False(t, cfg.ForceMock)
	assert.False(t, cfg.LearnFromMock)
	assert.Equal(t, IntelMock, cfg.IntelSource)
	assert.Equal(t, 3, cfg.Scheduler.PoolCap)
	assert.Equal(t, 3, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.JobTimeout)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DrainGrace)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.TriggerHorizon)
	assert.Equal(t, 1, cfg.Scheduler.ExpensivePerTick)
	assert.Equal(t, BudgetHard, cfg.Scheduler.ExpensiveMode)
	assert.Equal(t, 8080, cfg.Server.HealthPort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "real")
	t.Setenv("FORCE_MOCK", "true")
	t.Setenv("POOL_CAP", "5")
	t.Setenv("ACTIVE_POOLS", "0xaaa, 0xbbb,,0xccc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvReal, cfg.Environment)
	assert.True(t, cfg.ForceMock)
	assert.False(t, cfg.ExecReal(), "force_mock overrides environment")
	assert.Equal(t, 5, cfg.Scheduler.PoolCap)
	assert.Equal(t, []string{"0xaaa", "0xbbb", "0xccc"}, cfg.ActivePools)
}

func TestLoad_RejectsBadEnums(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsBadBudgetMode(t *testing.T) {
	t.Setenv("EXPENSIVE_BUDGET_MODE", "maybe")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DuneRequiresAPIKey(t *testing.T) {
	t.Setenv("INTEL_SOURCE", "dune")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUNE_API_KEY")

	t.Setenv("DUNE_API_KEY", "key123")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoad_AgentCommand(t *testing.T) {
	t.Setenv("AGENT_CMD", "python3 agent.py --fast")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "agent.py", "--fast"}, cfg.Agent.Command)
}

func TestSchedulerOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	content := `
active_pools:
  - "0xaaa"
  - "0xbbb"
queries:
  whale_sentiment: true
  gas_regime: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	overlay, err := LoadSchedulerOverlay(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, overlay.ActivePools)
	assert.Equal(t, map[string]bool{"whale_sentiment": true, "gas_regime": false}, overlay.Queries)

	cfg, err := Load()
	require.NoError(t, err)
	overlay.Apply(cfg)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, cfg.ActivePools)
}

func TestSchedulerOverlay_EmptyPath(t *testing.T) {
	overlay, err := LoadSchedulerOverlay("")
	require.NoError(t, err)
	assert.Empty(t, overlay.ActivePools)
	assert.Empty(t, overlay.Queries)
}

func TestSchedulerOverlay_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::::not yaml"), 0o644))
	_, err := LoadSchedulerOverlay(path)
	assert.Error(t, err)
}
