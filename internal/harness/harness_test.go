package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
	"github.com/duffmahn/hummingbot-track-a/internal/qualitykv"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHarness(t *testing.T) *Harness {
	t.Helper()
	store, err := qualitykv.Open(filepath.Join(t.TempDir(), "envelopes.json"))
	require.NoError(t, err)
	intelligence := intel.New(store, registry.MustNew(), nil)
	return New(NewMockExecutor(12345, nil), intelligence, nil)
}

func TestHarness_CaptureIntelSnapshotSevenQueries(t *testing.T) {
	h := newTestHarness(t)

	snapshot, hygiene := h.CaptureIntelSnapshot("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640", "WETH-USDC")

	assert.Len(t, snapshot, 7)
	assert.Equal(t, 7, hygiene.TotalQueries)
	// Cold cache: everything is missing.
	assert.Equal(t, 0, hygiene.FreshCount)
	assert.Equal(t, 7, hygiene.MissingOrTooOldCount)
	assert.Equal(t, 0.0, hygiene.FreshPercent)
}

func TestHarness_ExecuteChecksModeConsistency(t *testing.T) {
	h := newTestHarness(t)
	p := mockProposal("ep_20260301_120000_1", model.RegimeMeanRevert)
	rc := mockRunContext("ep_20260301_120000_1")
	rc.ExecMode = model.ExecModeReal // mismatch with the mock executor

	_, err := h.ExecuteEpisode(context.Background(), p, rc)
	assert.Error(t, err)
}

func TestSelectExecutor_ForceMock(t *testing.T) {
	cfg := &config.Config{
		Environment: config.EnvReal,
		ForceMock:   true,
		Validator:   config.ValidatorConfig{RiskAcknowledged: true},
	}
	exec, err := SelectExecutor(context.Background(), cfg, &fakeGateway{}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExecModeMock, exec.Mode())
}

func TestSelectExecutor_RealHealthy(t *testing.T) {
	cfg := &config.Config{
		Environment: config.EnvReal,
		Validator:   config.ValidatorConfig{RiskAcknowledged: true},
	}
	exec, err := SelectExecutor(context.Background(), cfg, &fakeGateway{quote: goodQuote()}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExecModeReal, exec.Mode())
}

func TestSelectExecutor_RealRequiresRiskAck(t *testing.T) {
	cfg := &config.Config{Environment: config.EnvReal}
	_, err := SelectExecutor(context.Background(), cfg, &fakeGateway{}, 1, nil)
	assert.Error(t, err)
}

func TestSelectExecutor_UnhealthyDegrades(t *testing.T) {
	gw := &fakeGateway{healthErr: assert.AnError}

	cfg := &config.Config{
		Environment: config.EnvReal,
		Validator:   config.ValidatorConfig{RiskAcknowledged: true, DegradeToMock: true},
	}
	exec, err := SelectExecutor(context.Background(), cfg, gw, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExecModeMock, exec.Mode())

	cfg.Validator.DegradeToMock = false
	_, err = SelectExecutor(context.Background(), cfg, gw, 1, nil)
	assert.Error(t, err)
}
