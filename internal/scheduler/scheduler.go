// Package scheduler is the background refresher that keeps the envelope
// store warm. It implements stale-while-revalidate over the query catalog
// with bounded workers, active-pool scoping and event-driven triggers.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/analytics"
	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
	"github.com/duffmahn/hummingbot-track-a/internal/qualitykv"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
	"github.com/duffmahn/hummingbot-track-a/internal/tracing"
	"golang.org/x/sync/errgroup"
)

// TickStats summarizes one refresh cycle.
type TickStats struct {
	Planned    int
	Dispatched int
	Succeeded  int
	Failed     int
	Dropped    int
	Deferred   int
	Triggers   int
}

// Scheduler drives the refresh loop. It is the single writer of the
// envelope store.
type Scheduler struct {
	cfg    config.SchedulerConfig
	reg    *registry.Registry
	store  *qualitykv.Store
	caller analytics.Caller
	logger *slog.Logger

	baseDir     string
	triggerPath string
	pools       []string // explicit active pools, optional
	pairs       []string // explicit active pairs, optional
	source      string   // envelope source tag

	nowFn func() time.Time
}

type Option func(*Scheduler)

// WithNowFn injects the clock, for tests.
func WithNowFn(fn func() time.Time) Option {
	return func(s *Scheduler) { s.nowFn = fn }
}

// WithActivePools pins the active pool set instead of deriving it from
// recent episodes.
func WithActivePools(pools []string) Option {
	return func(s *Scheduler) { s.pools = pools }
}

// WithActivePairs pins the active pair set.
func WithActivePairs(pairs []string) Option {
	return func(s *Scheduler) { s.pairs = pairs }
}

// WithSource overrides the envelope source tag (default "scheduler").
func WithSource(source string) Option {
	return func(s *Scheduler) { s.source = source }
}

func New(
	cfg config.SchedulerConfig,
	reg *registry.Registry,
	store *qualitykv.Store,
	caller analytics.Caller,
	baseDir, triggerPath string,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:         cfg,
		reg:         reg,
		store:       store,
		caller:      caller,
		logger:      logger.With("component", "scheduler"),
		baseDir:     baseDir,
		triggerPath: triggerPath,
		source:      "scheduler",
		nowFn:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Tick runs one refresh cycle: drain triggers, compute the active scope,
// plan needed queries, and dispatch them to the worker pool. Tick returns
// once every dispatched job has completed or timed out.
func (s *Scheduler) Tick(ctx context.Context) TickStats {
	start := s.nowFn()
	metrics.SchedulerTicksTotal.Inc()
	defer func() {
		metrics.SchedulerTickLatency.Observe(time.Since(start).Seconds())
	}()

	triggers := s.drainTriggers()
	scope := s.activeScope(triggers)
	plan, deferred := s.plan(scope, triggers)

	stats := TickStats{
		Planned:  len(plan) + deferred,
		Deferred: deferred,
		Triggers: len(triggers),
	}

	if len(plan) == 0 {
		s.logger.Debug("no stale entries, skipping tick")
		return stats
	}

	// Bounded queue: surplus items are dropped and recomputed next tick.
	queued := plan
	if s.cfg.QueueCap > 0 && len(queued) > s.cfg.QueueCap {
		dropped := len(queued) - s.cfg.QueueCap
		stats.Dropped = dropped
		metrics.SchedulerQueueDropped.Add(float64(dropped))
		s.logger.Warn("refresh queue full, dropping surplus", "dropped", dropped)
		queued = queued[:s.cfg.QueueCap]
	}
	stats.Dispatched = len(queued)

	jobCh := make(chan planItem, len(queued))
	for _, item := range queued {
		jobCh <- item
	}
	close(jobCh)

	results := make(chan bool, len(queued))
	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < s.cfg.WorkerCount; w++ {
		g.Go(func() error {
			return s.worker(gCtx, jobCh, results)
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		s.logger.Error("worker pool error", "error", err)
	}
	close(results)
	for ok := range results {
		if ok {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	s.logger.Info("tick complete",
		"planned", stats.Planned,
		"dispatched", stats.Dispatched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
		"deferred", stats.Deferred,
		"triggers", stats.Triggers,
		"elapsed", time.Since(start),
	)
	return stats
}

// RunForever loops Tick at the configured interval until ctx is
// cancelled. Cancellation is cooperative: the in-flight tick drains its
// workers (bounded by the job timeout) before RunForever returns.
func (s *Scheduler) RunForever(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"workers", s.cfg.WorkerCount,
		"pool_cap", s.cfg.PoolCap,
	)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "cause", "context_done")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// worker consumes planned items until the channel closes or ctx is
// cancelled. Each job gets its own timeout; a failed or timed-out fetch
// leaves the previous good envelope readable.
func (s *Scheduler) worker(ctx context.Context, jobs <-chan planItem, results chan<- bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-jobs:
			if !ok {
				return nil
			}
			results <- s.refresh(ctx, item)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context, item planItem) bool {
	spanCtx, span := tracing.Tracer("scheduler").Start(ctx, "scheduler.refresh")
	defer span.End()

	// In-flight jobs are never killed: cancellation stops the worker loop
	// between jobs, while a started fetch runs to completion or times out.
	// During a drain the grace period caps the job deadline.
	timeout := s.cfg.JobTimeout
	if ctx.Err() != nil && s.cfg.DrainGrace > 0 && s.cfg.DrainGrace < timeout {
		timeout = s.cfg.DrainGrace
	}
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(spanCtx), timeout)
	defer cancel()

	start := time.Now()
	rows, err := s.caller.Query(jobCtx, item.desc.Method, item.params)
	metrics.SchedulerJobLatency.WithLabelValues(item.desc.Key).Observe(time.Since(start).Seconds())

	key := intel.CanonicalKey(item.desc.Key, item.params)
	if err != nil {
		metrics.SchedulerJobsTotal.WithLabelValues(item.desc.Key, "error").Inc()
		s.logger.Warn("refresh failed",
			"query", item.desc.Key,
			"key", key,
			"error", err,
		)
		if storeErr := s.store.SetError(key, err.Error(), s.source); storeErr != nil {
			s.logger.Error("record refresh error", "key", key, "error", storeErr)
		}
		return false
	}

	data, err := json.Marshal(rows)
	if err != nil {
		metrics.SchedulerJobsTotal.WithLabelValues(item.desc.Key, "error").Inc()
		s.logger.Error("encode refresh payload", "key", key, "error", err)
		return false
	}

	env := model.Envelope{
		OK:            true,
		Data:          data,
		FetchedAt:     s.nowFn().UTC(),
		TTLSeconds:    item.desc.TTLSeconds,
		MaxAgeSeconds: item.desc.MaxAgeSeconds,
		Source:        s.source,
	}
	if err := s.store.Set(key, env); err != nil {
		metrics.SchedulerJobsTotal.WithLabelValues(item.desc.Key, "error").Inc()
		s.logger.Error("publish envelope", "key", key, "error", err)
		return false
	}

	metrics.SchedulerJobsTotal.WithLabelValues(item.desc.Key, "ok").Inc()
	s.logger.Debug("refreshed", "key", key)
	return true
}
