// Package agent invokes the learning agent for one episode. The agent's
// internals are opaque to the pipeline: it must write a valid proposal
// and initial metadata before returning, and a non-zero exit from an
// external agent signals agent failure.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ExitError carries an external agent's exit code to the failure artifact.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("agent exited with code %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Invoker produces the proposal and initial metadata for one episode.
type Invoker interface {
	Propose(ctx context.Context, runID, episodeID string) error
}

// ConfigHash fingerprints the agent's effective configuration. The hash
// is over the sorted key=value representation so map ordering cannot
// change it.
func ConfigHash(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		raw, _ := json.Marshal(params[k])
		fmt.Fprintf(h, "%s=%s;", k, raw)
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}
