package scheduler

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
)

// drainTriggers consumes the on-disk trigger log at a tick boundary. The
// file is truncated after reading; malformed lines are skipped, triggers
// older than the horizon are discarded, and triggers naming an unknown
// query key are ignored.
func (s *Scheduler) drainTriggers() []model.Trigger {
	if s.triggerPath == "" {
		return nil
	}
	f, err := os.Open(s.triggerPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("open trigger log", "error", err)
		}
		return nil
	}

	triggers := make([]model.Trigger, 0)
	scanner := bufio.NewScanner(f)
	now := s.nowFn()
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var trig model.Trigger
		if err := json.Unmarshal(line, &trig); err != nil {
			metrics.SchedulerTriggersProcessed.WithLabelValues("malformed").Inc()
			s.logger.Warn("skipping malformed trigger line", "error", err)
			continue
		}
		if now.Sub(trig.Timestamp) > s.cfg.TriggerHorizon {
			metrics.SchedulerTriggersProcessed.WithLabelValues("expired").Inc()
			continue
		}
		if trig.QueryKey != "" {
			if _, ok := s.reg.Get(trig.QueryKey); !ok {
				metrics.SchedulerTriggersProcessed.WithLabelValues("unknown_key").Inc()
				s.logger.Warn("ignoring trigger for unknown query", "query_key", trig.QueryKey)
				continue
			}
		}
		metrics.SchedulerTriggersProcessed.WithLabelValues("accepted").Inc()
		triggers = append(triggers, trig)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("read trigger log", "error", err)
	}
	f.Close()

	// Consume-and-truncate at the tick boundary. Producers append-only,
	// so a truncate race can at worst delay a trigger to the next tick.
	if err := os.Truncate(s.triggerPath, 0); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("truncate trigger log", "error", err)
	}

	if len(triggers) > 0 {
		s.logger.Info("triggers drained", "count", len(triggers))
	}
	return triggers
}
