// internal/workers/application/create-application-record/handler.go
package createapplicationrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/identifier"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "create-application-record"
)

type Handler struct {
	config     *Config
	db         *sql.DB
	errHandler *errors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		db:         db,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
		now:        time.Now,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	sub := &input.Submission
	if sub.Draft == nil {
		return nil, errors.NewInvalidInputError("submission has no form responses")
	}
	code := identifier.ReferenceCode(sub.Draft.Personal.NationalIDNumber)
	if code == "" {
		return nil, errors.NewInvalidInputError("national ID is required to generate a reference code")
	}

	// A national ID may back one application. A retried job for the same
	// session finds its own row and completes with it.
	var (
		existingID      string
		existingSession string
		existingStatus  string
		existingCreated time.Time
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT id, session_id, status, created_at FROM applications
		WHERE reference_code = $1 OR session_id = $2
		LIMIT 1`, code, sub.SessionID).Scan(&existingID, &existingSession, &existingStatus, &existingCreated)
	switch {
	case err == nil && existingSession == sub.SessionID:
		h.logger.Info("application record already exists", map[string]interface{}{
			"applicationId": existingID,
			"sessionId":     sub.SessionID,
		})
		return &Output{
			ApplicationID:     existingID,
			ReferenceCode:     code,
			ApplicationStatus: existingStatus,
			CreatedAt:         existingCreated.UTC().Format(time.RFC3339),
		}, nil
	case err == nil:
		return nil, errors.NewDuplicateApplicationError(code)
	case !stdErrors.Is(err, sql.ErrNoRows):
		return nil, errors.NewQueryExecutionFailedError("application duplicate check", err)
	}

	submissionJSON, err := json.Marshal(sub)
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("marshal submission: %v", err))
	}

	appID := uuid.New().String()
	createdAt := h.now().UTC()
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = createdAt
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, session_id, reference_code, form_type, form_id, variant,
			submission, status, submitted_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		appID,
		sub.SessionID,
		code,
		sub.FormType,
		sub.FormID,
		string(sub.Variant),
		submissionJSON,
		StatusSubmitted,
		submittedAt,
		createdAt,
	)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	// Audit entries are best effort.
	auditDetailsJSON, err := json.Marshal(map[string]interface{}{
		"sessionId":     sub.SessionID,
		"referenceCode": code,
		"formId":        sub.FormID,
		"variant":       sub.Variant,
	})
	if err != nil {
		auditDetailsJSON = []byte("{}")
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"application_created",
		"application",
		appID,
		auditDetailsJSON,
		createdAt,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": appID,
		})
	}

	h.logger.Info("application record created", map[string]interface{}{
		"applicationId": appID,
		"sessionId":     sub.SessionID,
		"formId":        sub.FormID,
		"variant":       sub.Variant,
	})

	return &Output{
		ApplicationID:     appID,
		ReferenceCode:     code,
		ApplicationStatus: StatusSubmitted,
		CreatedAt:         createdAt.Format(time.RFC3339),
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
