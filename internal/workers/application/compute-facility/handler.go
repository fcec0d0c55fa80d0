// internal/workers/application/compute-facility/handler.go
package computefacility

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/facility"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "compute-facility"
)

type Handler struct {
	config     *Config
	calc       *facility.Calculator
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, calc *facility.Calculator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		calc:       calc,
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
	return &input, nil
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	financed := true
	if input.Variant != "" {
		params, ok := input.Variant.Params()
		if !ok {
			return nil, errors.NewUnknownVariantError(string(input.Variant))
		}
		financed = params.Financed
	}

	fac := h.calc.Compute(input.ProductSelection, facility.Overrides{
		Variant:        input.Variant,
		TermMonths:     input.CreditTermMonths,
		MonthlyPayment: input.MonthlyPayment,
	})

	h.logger.Info("facility computed", map[string]interface{}{
		"variant":        input.Variant,
		"amount":         fac.Amount.StringFixed(2),
		"termMonths":     fac.TermMonths,
		"monthlyPayment": fac.MonthlyPayment.StringFixed(2),
	})

	return &Output{Facility: fac, Financed: financed}, nil
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
