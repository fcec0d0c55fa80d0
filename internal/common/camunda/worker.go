// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"sync"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/metrics"
	"application-wizard/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is what every task worker implements.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Workers tracks the job workers opened against one client.
type Workers struct {
	client  zbc.Client
	obs     *observability.Observability
	log     logger.Logger
	workers map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, obs *observability.Observability, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		obs:     obs,
		log:     log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Open starts polling taskType unless the worker config disables it.
func (w *Workers) Open(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		w.log.Info("Worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 5
	}
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	w.workers[taskType] = w.client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, w.obs)).
		MaxJobsActive(maxJobs).
		Timeout(timeout).
		Name(taskType).
		Open()

	w.log.Info("Worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobs,
		"timeout":       timeout.String(),
	})
	return true
}

// Len reports how many workers are polling.
func (w *Workers) Len() int {
	return len(w.workers)
}

// Close stops every worker and waits for in-flight jobs.
func (w *Workers) Close() {
	for taskType, jw := range w.workers {
		jw.Close()
		jw.AwaitClose()
		w.log.Info("Worker stopped", map[string]interface{}{"taskType": taskType})
	}
	w.workers = make(map[string]worker.JobWorker)
}

// Job outcomes as seen by the instrumented client.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeThrown    = "bpmn_error"
	OutcomeNone      = "no_response"
)

// Instrument records the outcome and duration of every job the handler
// processes.
func Instrument(taskType string, handler JobHandler, obs *observability.Observability) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		rec := &recordingClient{JobClient: client, outcome: OutcomeNone}
		start := time.Now()

		handler.Handle(rec, job)

		outcome := rec.Outcome()
		elapsed := time.Since(start)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		if outcome == OutcomeCompleted {
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		} else {
			metrics.WorkerJobsFailed.WithLabelValues(taskType, outcome).Inc()
		}

		ctx := context.Background()
		obs.RecordJobProcessed(ctx, taskType, outcome)
		obs.RecordJobDuration(ctx, taskType, elapsed, outcome)
	}
}

// recordingClient notes which terminal command the handler issued.
type recordingClient struct {
	worker.JobClient

	mu      sync.Mutex
	outcome string
}

func (r *recordingClient) mark(outcome string) {
	r.mu.Lock()
	r.outcome = outcome
	r.mu.Unlock()
}

func (r *recordingClient) Outcome() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

func (r *recordingClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	r.mark(OutcomeCompleted)
	return r.JobClient.NewCompleteJobCommand()
}

func (r *recordingClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	r.mark(OutcomeFailed)
	return r.JobClient.NewFailJobCommand()
}

func (r *recordingClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	r.mark(OutcomeThrown)
	return r.JobClient.NewThrowErrorCommand()
}
