// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/phone"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-notification"
)

// SMSSender delivers a text message to an E.164 number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) (string, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

type Handler struct {
	config     *Config
	sms        SMSSender
	email      EmailSender
	phones     *phone.Canonicalizer
	errHandler *errors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

// NewHandler builds the worker. A nil sender disables its channel.
func NewHandler(config *Config, sms SMSSender, email EmailSender, phones *phone.Canonicalizer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		sms:        sms,
		email:      email,
		phones:     phones,
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
	input.ApplicationNumber = strings.TrimSpace(input.ApplicationNumber)
	input.Email = strings.TrimSpace(input.Email)
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	tmpl, ok := templates[input.NotificationType]
	if !ok {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown notification type: %s", input.NotificationType))
	}
	if tmpl.needsNumber && input.ApplicationNumber == "" {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("%s requires applicationNumber", input.NotificationType))
	}

	subject, body := render(tmpl, input)
	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		Channels:       []string{},
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	// SMS is the primary channel. Its failure is retried; nothing else was sent yet.
	if to, ok := h.smsTarget(input.Phone); ok {
		id, err := h.sms.SendSMS(ctx, to, body)
		if err != nil {
			return nil, errors.NewNotificationFailedError(ChannelSMS, err)
		}
		output.Channels = append(output.Channels, ChannelSMS)
		h.logger.Info("sms sent", map[string]interface{}{
			"type":      input.NotificationType,
			"messageId": id,
		})
	}

	if h.config.EmailEnabled && h.email != nil && input.Email != "" {
		id, err := h.email.SendEmail(ctx, input.Email, subject, body)
		switch {
		case err == nil:
			output.Channels = append(output.Channels, ChannelEmail)
			h.logger.Info("email sent", map[string]interface{}{
				"type":      input.NotificationType,
				"messageId": id,
			})
		case len(output.Channels) == 0:
			return nil, errors.NewNotificationFailedError(ChannelEmail, err)
		default:
			h.logger.Error("email send failed", map[string]interface{}{
				"error": err,
				"type":  input.NotificationType,
			})
			output.Status = StatusPartial
		}
	}

	if len(output.Channels) > 0 && output.Status != StatusPartial {
		output.Status = StatusSent
	}
	return output, nil
}

// smsTarget returns the E.164 form of raw when SMS is enabled and raw is dialable.
func (h *Handler) smsTarget(raw string) (string, bool) {
	if !h.config.SMSEnabled || h.sms == nil || strings.TrimSpace(raw) == "" {
		return "", false
	}
	if !h.phones.Valid(raw) {
		h.logger.Warn("skipping sms to undialable number", map[string]interface{}{
			"region": h.phones.Region(),
		})
		return "", false
	}
	return h.phones.Canonical(raw), true
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
		"status": output.Status,
	})
}
