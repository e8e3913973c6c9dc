package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// ExternalAgent shells out to a separately-deployed agent process. The
// contract: the process receives the run and episode ids via environment
// and must write proposal.json and an initial metadata.json into the
// episode directory before exiting zero.
type ExternalAgent struct {
	command []string
	timeout time.Duration
	baseDir string
	logger  *slog.Logger
}

func NewExternalAgent(command []string, timeout time.Duration, baseDir string, logger *slog.Logger) *ExternalAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExternalAgent{
		command: command,
		timeout: timeout,
		baseDir: baseDir,
		logger:  logger.With("component", "external_agent"),
	}
}

func (a *ExternalAgent) Propose(ctx context.Context, runID, episodeID string) error {
	if len(a.command) == 0 {
		return fmt.Errorf("external agent command is empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.command[0], a.command[1:]...)
	cmd.Env = append(os.Environ(),
		"RUN_ID="+runID,
		"EPISODE_ID="+episodeID,
		"BASE_DIR="+a.baseDir,
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	a.logger.Info("invoking agent", "run_id", runID, "episode_id", episodeID)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Err: err}
		}
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}
