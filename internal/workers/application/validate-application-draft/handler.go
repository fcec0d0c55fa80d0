// internal/workers/application/validate-application-draft/handler.go
package validateapplicationdraft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/rules"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-application-draft"
)

type Handler struct {
	config     *Config
	rules      *rules.Ruleset
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, rs *rules.Ruleset, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		rules:      rs,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput([]byte(job.Variables))
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}
	if !output.IsValid && !h.config.CompleteOnInvalid {
		h.errHandler.HandleJobError(ctx, client, job, violationError(output))
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(raw []byte) (*Input, error) {
	res, err := inputSchema.ValidateBytes(raw)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !res.Valid {
		fields := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			fields = append(fields, e.Field+": "+e.Message)
		}
		return nil, errors.NewInvalidInputError(strings.Join(fields, "; "))
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	draft := &input.Draft
	if _, ok := draft.Variant.Params(); !ok {
		return nil, errors.NewUnknownVariantError(string(draft.Variant))
	}

	res := h.rules.Validate(draft)
	out := &Output{
		IsValid: res.Valid,
		Variant: draft.Variant,
		Checked: h.rules.Rules(draft.Variant),
	}
	if v := res.FirstViolation; v != nil {
		out.Rule = v.Rule
		out.Message = v.Message
		out.Section = v.Section
	}

	h.logger.Info("validation completed", map[string]interface{}{
		"sessionId": draft.SessionID,
		"variant":   draft.Variant,
		"isValid":   out.IsValid,
		"rule":      out.Rule,
	})
	return out, nil
}

// violationError carries the failed rule into the BPMN error variables.
func violationError(out *Output) error {
	return errors.NewApplicationValidationFailedError(string(out.Rule), out.Message).
		WithMetadata("section", out.Section).
		WithMetadata("variant", string(out.Variant))
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}
