package model

import (
	"fmt"
	"regexp"
	"time"
)

const idTimeLayout = "20060102_150405"

// NewRunID derives a run identifier from the given wall time.
func NewRunID(t time.Time) string {
	return "run_" + t.UTC().Format(idTimeLayout)
}

// NewEpisodeID derives an episode identifier from the given wall time and
// the episode's index within the run.
func NewEpisodeID(t time.Time, n int) string {
	return fmt.Sprintf("ep_%s_%d", t.UTC().Format(idTimeLayout), n)
}

var (
	runIDPattern     = regexp.MustCompile(`^run_\d{8}_\d{6}$`)
	episodeIDPattern = regexp.MustCompile(`^ep_\d{8}_\d{6}_\d+$`)
)

// ValidRunID reports whether id matches the run_<YYYYMMDD_HHMMSS> form.
func ValidRunID(id string) bool { return runIDPattern.MatchString(id) }

// ValidEpisodeID reports whether id matches the ep_<YYYYMMDD_HHMMSS>_<n> form.
func ValidEpisodeID(id string) bool { return episodeIDPattern.MatchString(id) }
