// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// reportTimeout bounds the fail/throw command sent after a job error.
const reportTimeout = 5 * time.Second

// ErrorHandler reports worker failures back to the engine.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries for retryable codes and throws
// a BPMN error otherwise.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := normalizeError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logError(job, stdErr, bpmnErr)

	// ctx may be the job context that just expired.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	vars := ""
	if raw, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		vars = string(raw)
	}

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		// never raise the engine's remaining retries
		retries := bpmnErr.Retries
		if int(job.Retries)-1 < retries {
			retries = int(job.Retries) - 1
		}
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(int32(retries)).
			ErrorMessage(bpmnErr.Message)

		h.report(job, "failed to send fail job command", func() error {
			if vars != "" {
				if withVars, err := cmd.VariablesFromString(vars); err == nil {
					_, err = withVars.Send(sendCtx)
					return err
				}
			}
			_, err := cmd.Send(sendCtx)
			return err
		})
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	h.report(job, "failed to throw bpmn error", func() error {
		if vars != "" {
			if withVars, err := cmd.VariablesFromString(vars); err == nil {
				_, err = withVars.Send(sendCtx)
				return err
			}
		}
		_, err := cmd.Send(sendCtx)
		return err
	})
}

func (h *ErrorHandler) report(job entities.Job, msg string, send func() error) {
	if err := send(); err != nil {
		h.logger.Error(msg, map[string]interface{}{"jobKey": job.Key, "error": err})
	}
}

// normalizeError maps err onto a StandardError. A job that ran out of time
// is retried; anything unclassified is not.
func normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewJobTimeoutError(err)
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	fields := map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	}
	for k, v := range stdErr.Metadata {
		fields["meta."+k] = v
	}
	h.logger.Error("Job failed", fields)
}
