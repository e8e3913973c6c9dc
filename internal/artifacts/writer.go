// Package artifacts owns the immutable on-disk episode bundle:
//
//	<base>/runs/<run_id>/
//	  campaign.log
//	  episodes/<episode_id>/
//	    proposal.json
//	    metadata.json
//	    result.json (xor failure.json)
//	    timings.json
//	    reward.json  (optional)
//	    logs.jsonl   (optional, append-only)
//
// Every JSON write is atomic (tmp file + rename within the episode
// directory); a crash mid-write leaves the previous version intact.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
)

// ErrIO marks filesystem failures; fatal to the current episode.
var ErrIO = errors.New("artifact io error")

// ErrSchema marks payloads that do not satisfy their declared type;
// fatal to the current episode. Writes are never silently dropped.
var ErrSchema = errors.New("artifact schema error")

// Writer writes artifacts for one (run, episode) pair.
type Writer struct {
	runID      string
	episodeID  string
	episodeDir string
	runDir     string

	logMu sync.Mutex
}

// NewWriter resolves the episode directory under baseDir. The directory
// is created lazily on first write.
func NewWriter(baseDir, runID, episodeID string) *Writer {
	runDir := filepath.Join(baseDir, "runs", runID)
	return &Writer{
		runID:      runID,
		episodeID:  episodeID,
		runDir:     runDir,
		episodeDir: filepath.Join(runDir, "episodes", episodeID),
	}
}

// EpisodeDir returns the directory this writer owns.
func (w *Writer) EpisodeDir() string { return w.episodeDir }

// RunDir returns the run directory.
func (w *Writer) RunDir() string { return w.runDir }

// EnsureDirectories creates the episode directory if needed.
func (w *Writer) EnsureDirectories() error {
	if err := os.MkdirAll(w.episodeDir, 0o755); err != nil {
		return fmt.Errorf("%w: create episode dir: %v", ErrIO, err)
	}
	return nil
}

func (w *Writer) WriteProposal(p *model.Proposal) error {
	if p.EpisodeID == "" {
		return fmt.Errorf("%w: proposal missing episode_id", ErrSchema)
	}
	if p.Status != model.ProposalActive && p.Status != model.ProposalSkipped {
		return fmt.Errorf("%w: proposal status %q", ErrSchema, p.Status)
	}
	return w.writeJSON("proposal.json", p)
}

// WriteMetadata persists metadata. With merge set, the new document is
// deep-merged over the existing file: new keys win at leaves, nested
// maps merge, arrays are replaced. This lets the harness add the intel
// snapshot after the agent wrote the base metadata.
func (w *Writer) WriteMetadata(m *model.EpisodeMetadata, merge bool) error {
	if m.EpisodeID == "" || m.RunID == "" {
		return fmt.Errorf("%w: metadata missing episode_id or run_id", ErrSchema)
	}
	if !m.ExecMode.Valid() {
		return fmt.Errorf("%w: metadata exec_mode %q", ErrSchema, m.ExecMode)
	}

	if !merge {
		return w.writeJSON("metadata.json", m)
	}

	existingRaw, err := os.ReadFile(filepath.Join(w.episodeDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return w.writeJSON("metadata.json", m)
		}
		return fmt.Errorf("%w: read metadata for merge: %v", ErrIO, err)
	}

	var existing map[string]any
	if err := json.Unmarshal(existingRaw, &existing); err != nil {
		// An unreadable prior document is replaced rather than merged.
		return w.writeJSON("metadata.json", m)
	}

	newRaw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", ErrSchema, err)
	}
	var incoming map[string]any
	if err := json.Unmarshal(newRaw, &incoming); err != nil {
		return fmt.Errorf("%w: reshape metadata: %v", ErrSchema, err)
	}

	return w.writeJSON("metadata.json", deepMerge(existing, incoming))
}

func (w *Writer) WriteResult(r *model.EpisodeResult) error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: result status %q", ErrSchema, r.Status)
	}
	if !r.ExecMode.Valid() {
		return fmt.Errorf("%w: result exec_mode %q", ErrSchema, r.ExecMode)
	}
	return w.writeJSON("result.json", r)
}

func (w *Writer) WriteFailure(f *model.FailureArtifact) error {
	if f.Stage == "" {
		return fmt.Errorf("%w: failure missing stage", ErrSchema)
	}
	return w.writeJSON("failure.json", f)
}

func (w *Writer) WriteTimings(timings map[string]float64) error {
	return w.writeJSON("timings.json", timings)
}

func (w *Writer) WriteReward(r *model.RewardBreakdown) error {
	return w.writeJSON("reward.json", r)
}

// AppendLog appends one {event, payload} line to logs.jsonl. A short
// process-local lock keeps concurrent appends whole; a crash mid-line
// leaves the file parseable up to the last complete line.
func (w *Writer) AppendLog(event string, payload map[string]any) error {
	if err := w.EnsureDirectories(); err != nil {
		return err
	}
	entry := map[string]any{"event": event, "payload": payload}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode log entry: %v", ErrSchema, err)
	}

	w.logMu.Lock()
	defer w.logMu.Unlock()

	f, err := os.OpenFile(filepath.Join(w.episodeDir, "logs.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues("logs").Inc()
		return fmt.Errorf("%w: open logs: %v", ErrIO, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues("logs").Inc()
		return fmt.Errorf("%w: append log: %v", ErrIO, err)
	}
	return nil
}

// AppendCampaignLog appends a line to the run-level campaign.log.
func AppendCampaignLog(baseDir, runID, line string) error {
	runDir := filepath.Join(baseDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("%w: create run dir: %v", ErrIO, err)
	}
	f, err := os.OpenFile(filepath.Join(runDir, "campaign.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open campaign log: %v", ErrIO, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: append campaign log: %v", ErrIO, err)
	}
	return nil
}

// writeJSON lands the document via tmp file + rename in the same
// directory. A failed rename propagates as ErrIO.
func (w *Writer) writeJSON(filename string, v any) error {
	if err := w.EnsureDirectories(); err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return fmt.Errorf("%w: encode %s: %v", ErrSchema, filename, err)
	}

	target := filepath.Join(w.episodeDir, filename)
	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return fmt.Errorf("%w: create %s: %v", ErrIO, filename, err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return fmt.Errorf("%w: write %s: %v", ErrIO, filename, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return fmt.Errorf("%w: sync %s: %v", ErrIO, filename, err)
	}
	if err := f.Close(); err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return fmt.Errorf("%w: close %s: %v", ErrIO, filename, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		metrics.ArtifactWriteErrors.WithLabelValues(filename).Inc()
		return fmt.Errorf("%w: replace %s: %v", ErrIO, filename, err)
	}
	return nil
}

// deepMerge merges src over dst: nested maps merge recursively, every
// other value (arrays included) is replaced by src.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		srcMap, srcOk := v.(map[string]any)
		dstMap, dstOk := out[k].(map[string]any)
		if srcOk && dstOk {
			out[k] = deepMerge(dstMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}
