// Package metrics defines the Prometheus instruments for the episode
// pipeline and the background refresh scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total refresh ticks",
	})

	SchedulerTickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Refresh tick duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	SchedulerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "jobs_total",
		Help:      "Refresh jobs dispatched, by query key and outcome",
	}, []string{"query", "outcome"})

	SchedulerJobLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Refresh job duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"query"})

	SchedulerQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "queue_dropped_total",
		Help:      "Planned items dropped because the per-tick queue was full",
	})

	SchedulerTriggersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "triggers_processed_total",
		Help:      "Triggers drained from the trigger log, by disposition",
	}, []string{"disposition"})

	SchedulerBudgetDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "scheduler",
		Name:      "expensive_deferred_total",
		Help:      "Expensive items deferred by the per-tick budget",
	})

	// Episodes
	EpisodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "episodes",
		Name:      "total",
		Help:      "Episodes completed, by exec mode and status",
	}, []string{"exec_mode", "status"})

	EpisodeStageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "episodes",
		Name:      "stage_failures_total",
		Help:      "Episode failures, by stage",
	}, []string{"stage"})

	EpisodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clmm",
		Subsystem: "episodes",
		Name:      "duration_seconds",
		Help:      "Wall time per episode",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// Intelligence
	IntelReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "intel",
		Name:      "reads_total",
		Help:      "Cache-first intel reads, by query key and quality",
	}, []string{"query", "quality"})

	// Artifacts
	ArtifactWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "artifacts",
		Name:      "write_errors_total",
		Help:      "Artifact write failures, by artifact kind",
	}, []string{"kind"})

	// Analytics backend
	BackendCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "backend",
		Name:      "calls_total",
		Help:      "Analytics backend calls, by method and status",
	}, []string{"method", "status"})

	BackendRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "backend",
		Name:      "rate_limit_waits_total",
		Help:      "Backend calls delayed by the rate limiter",
	})

	// Gateway
	GatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm",
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "Exchange gateway calls, by route and status",
	}, []string{"route", "status"})
)
