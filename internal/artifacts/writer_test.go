package artifacts

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProposal(episodeID string) *model.Proposal {
	return &model.Proposal{
		EpisodeID:   episodeID,
		GeneratedAt: time.Now().UTC(),
		Status:      model.ProposalActive,
		Connector:   model.DefaultConnector,
		Chain:       "ethereum",
		Network:     "mainnet",
		PoolAddress: "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		Params: model.ProposalParams{
			RangeWidthPct:         5,
			RefreshIntervalS:      300,
			SpreadBps:             30,
			OrderSizeUSD:          10_000,
			RebalanceThresholdPct: 2,
			MaxPositionUSD:        50_000,
		},
		Metadata: testMetadata(episodeID),
	}
}

func testMetadata(episodeID string) model.EpisodeMetadata {
	return model.EpisodeMetadata{
		EpisodeID:    episodeID,
		RunID:        "run_20260301_120000",
		Timestamp:    time.Now().UTC(),
		ExecMode:     model.ExecModeMock,
		ConfigHash:   "abcd1234",
		AgentVersion: "v1.0",
		Seed:         42,
	}
}

func TestWriter_DirectoryLayout(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	require.NoError(t, w.WriteProposal(testProposal("ep_20260301_120000_1")))

	expected := filepath.Join(base, "runs", "run_20260301_120000", "episodes", "ep_20260301_120000_1", "proposal.json")
	assert.FileExists(t, expected)
}

func TestWriter_AtomicNoTmpLeftBehind(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	require.NoError(t, w.WriteProposal(testProposal("ep_20260301_120000_1")))

	entries, err := os.ReadDir(w.EpisodeDir())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestWriter_SchemaErrors(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	p := testProposal("ep_20260301_120000_1")
	p.EpisodeID = ""
	assert.ErrorIs(t, w.WriteProposal(p), ErrSchema)

	m := testMetadata("ep_20260301_120000_1")
	m.ExecMode = "bogus"
	assert.ErrorIs(t, w.WriteMetadata(&m, false), ErrSchema)

	r := &model.EpisodeResult{Status: "partial", ExecMode: model.ExecModeMock}
	assert.ErrorIs(t, w.WriteResult(r), ErrSchema)

	f := &model.FailureArtifact{}
	assert.ErrorIs(t, w.WriteFailure(f), ErrSchema)
}

func TestWriter_MetadataDeepMergePreservesSnapshot(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	first := testMetadata("ep_20260301_120000_1")
	first.Extra = map[string]any{
		"intel_snapshot": map[string]any{
			"gas_regime": map[string]any{"quality": "fresh"},
		},
	}
	require.NoError(t, w.WriteMetadata(&first, true))

	// A later merge without Extra must not disturb the snapshot.
	second := testMetadata("ep_20260301_120000_1")
	second.LearningUpdateApplied = true
	require.NoError(t, w.WriteMetadata(&second, true))

	raw, err := os.ReadFile(filepath.Join(w.EpisodeDir(), "metadata.json"))
	require.NoError(t, err)
	var merged map[string]any
	require.NoError(t, json.Unmarshal(raw, &merged))

	assert.Equal(t, true, merged["learning_update_applied"])
	extra, ok := merged["extra"].(map[string]any)
	require.True(t, ok, "extra must survive the merge")
	snapshot, ok := extra["intel_snapshot"].(map[string]any)
	require.True(t, ok)
	gas := snapshot["gas_regime"].(map[string]any)
	assert.Equal(t, "fresh", gas["quality"])
}

func TestWriter_MetadataMergeNestedMapsAndArrays(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	first := testMetadata("ep_20260301_120000_1")
	first.Extra = map[string]any{
		"nested": map[string]any{"keep": 1.0, "replace": 1.0},
		"list":   []any{1.0, 2.0},
	}
	require.NoError(t, w.WriteMetadata(&first, true))

	second := testMetadata("ep_20260301_120000_1")
	second.Extra = map[string]any{
		"nested": map[string]any{"replace": 2.0, "added": 3.0},
		"list":   []any{9.0},
	}
	require.NoError(t, w.WriteMetadata(&second, true))

	raw, err := os.ReadFile(filepath.Join(w.EpisodeDir(), "metadata.json"))
	require.NoError(t, err)
	var merged map[string]any
	require.NoError(t, json.Unmarshal(raw, &merged))

	extra := merged["extra"].(map[string]any)
	nested := extra["nested"].(map[string]any)
	assert.Equal(t, 1.0, nested["keep"], "untouched leaves survive")
	assert.Equal(t, 2.0, nested["replace"], "new leaves win")
	assert.Equal(t, 3.0, nested["added"])
	assert.Equal(t, []any{9.0}, extra["list"], "arrays are replaced, not merged")
}

func TestWriter_AppendLogParseable(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = w.AppendLog("tick", map[string]any{"n": n})
		}(i)
	}
	wg.Wait()

	f, err := os.Open(filepath.Join(w.EpisodeDir(), "logs.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "every line must parse")
		assert.Equal(t, "tick", entry["event"])
		count++
	}
	assert.Equal(t, 10, count)
}

func TestWriter_ResultRoundTrip(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	result := &model.EpisodeResult{
		EpisodeID: "ep_20260301_120000_1",
		RunID:     "run_20260301_120000",
		Timestamp: time.Now().UTC(),
		Status:    model.StatusSuccess,
		ExecMode:  model.ExecModeMock,
		PnLUSD:    12.34,
	}
	require.NoError(t, w.WriteResult(result))

	raw, err := os.ReadFile(filepath.Join(w.EpisodeDir(), "result.json"))
	require.NoError(t, err)
	var decoded model.EpisodeResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, result.Status, decoded.Status)
	assert.Equal(t, result.PnLUSD, decoded.PnLUSD)
}

func TestWriter_CrashBetweenTmpAndRenameLeavesPriorIntact(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "run_20260301_120000", "ep_20260301_120000_1")

	require.NoError(t, w.WriteProposal(testProposal("ep_20260301_120000_1")))

	// Simulate a crash that left a half-written tmp file behind.
	tmp := filepath.Join(w.EpisodeDir(), "proposal.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"trunc`), 0o644))

	// The prior artifact is untouched and still parses.
	raw, err := os.ReadFile(filepath.Join(w.EpisodeDir(), "proposal.json"))
	require.NoError(t, err)
	var p model.Proposal
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "ep_20260301_120000_1", p.EpisodeID)

	// A subsequent write replaces both cleanly.
	require.NoError(t, w.WriteProposal(testProposal("ep_20260301_120000_1")))
	assert.NoFileExists(t, tmp)
}

func TestAppendCampaignLog(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, AppendCampaignLog(base, "run_20260301_120000", "episode done"))
	require.NoError(t, AppendCampaignLog(base, "run_20260301_120000", "another line"))

	raw, err := os.ReadFile(filepath.Join(base, "runs", "run_20260301_120000", "campaign.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "episode done")
	assert.Contains(t, string(raw), "another line")
}
