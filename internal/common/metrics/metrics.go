// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	SessionSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_session_saves_total",
			Help: "Session snapshot writes per tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	SessionExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wizard_session_expired_total",
			Help: "Snapshots purged on read because they were past expiry",
		},
	)

	SyncPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_sync_pushes_total",
			Help: "Remote state pushes by outcome",
		},
		[]string{"outcome"},
	)

	SyncPushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wizard_sync_push_duration_seconds",
			Help:    "Duration of remote state pushes",
			Buckets: prometheus.DefBuckets,
		},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_validation_failures_total",
			Help: "First violated rule per validation run",
		},
		[]string{"variant", "rule"},
	)

	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Wizard step transitions by flow and direction",
		},
		[]string{"flow", "direction"},
	)

	StateRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_api_requests_total",
			Help: "State API requests by route and status",
		},
		[]string{"route", "status"},
	)

	StateCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_api_cache_lookups_total",
			Help: "State API retrieve cache lookups by result",
		},
		[]string{"result"},
	)
)
