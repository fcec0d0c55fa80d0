// internal/workers/application/assemble-submission/handler.go
package assemblesubmission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "assemble-submission"
)

type Handler struct {
	config     *Config
	assembler  *wizard.Assembler
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, assembler *wizard.Assembler, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		assembler:  assembler,
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
	if input.Draft.Answers == nil {
		input.Draft.Answers = map[string]interface{}{}
	}
	return &input, nil
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	sub, err := h.assembler.Assemble(&input.Draft)
	if err != nil {
		return nil, err
	}

	h.logger.Info("submission assembled", map[string]interface{}{
		"sessionId": sub.SessionID,
		"formType":  sub.FormType,
		"variant":   sub.Variant,
	})

	return &Output{
		Submission:    sub,
		FormType:      sub.FormType,
		FormID:        sub.FormID,
		DocumentTypes: sub.Documents.ValidationSummary.DocumentTypes,
	}, nil
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
