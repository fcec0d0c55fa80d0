// internal/statesync/synchronizer.go

// Package statesync pushes draft snapshots to the remote state API and
// retrieves resumable state from it.
package statesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/debounce"
	"application-wizard/internal/common/errors"
	commonhttp "application-wizard/internal/common/http"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/metrics"
	"application-wizard/internal/common/observability"
	"application-wizard/internal/models"
)

const (
	SavePath     = "/api/states/save"
	RetrievePath = "/api/states/retrieve"
	ResumePath   = "/api/states/resume"

	defaultChannel  = "web"
	defaultDebounce = time.Second
	pushTimeout     = 10 * time.Second
	maxLoggedBody   = 512
)

// SaveRequest is the body of a save call.
type SaveRequest struct {
	SessionID      string                 `json:"session_id"`
	Channel        string                 `json:"channel"`
	UserIdentifier string                 `json:"user_identifier"`
	CurrentStep    string                 `json:"current_step"`
	FormData       map[string]interface{} `json:"form_data"`
	Metadata       SaveMetadata           `json:"metadata"`
}

type SaveMetadata struct {
	UserAgent string `json:"user_agent,omitempty"`
	Timestamp string `json:"timestamp"`
}

type SaveResponse struct {
	Success   bool   `json:"success"`
	StateID   string `json:"state_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Message   string `json:"message,omitempty"`
}

type RetrieveRequest struct {
	User    string `json:"user"`
	Channel string `json:"channel,omitempty"`
}

// ResumeRequest looks a state up by the reference code the applicant was
// given.
type ResumeRequest struct {
	ReferenceCode string `json:"reference_code"`
}

// RemoteState is a resumable state held by the remote API.
type RemoteState struct {
	Success       bool                   `json:"success"`
	SessionID     string                 `json:"session_id"`
	CurrentStep   string                 `json:"current_step"`
	FormData      map[string]interface{} `json:"form_data"`
	ReferenceCode string                 `json:"reference_code,omitempty"`
	CanResume     bool                   `json:"can_resume"`
	ExpiresIn     int64                  `json:"expires_in"`
	Message       string                 `json:"message,omitempty"`
}

// Synchronizer is the client side of the state API. A push failure is
// returned to the caller and never retried; the local snapshot remains
// the recovery path.
type Synchronizer struct {
	client    *commonhttp.Client
	enabled   bool
	baseURL   string
	channel   string
	userAgent string
	userID    string
	debounce  time.Duration
	pending   *debounce.Debouncer
	now       func() time.Time
	obs       *observability.Observability
	log       logger.Logger
}

// NewSynchronizer builds a synchronizer. A nil client gets one with the
// configured timeout; a nil clock uses time.Now.
func NewSynchronizer(cfg config.SyncConfig, client *commonhttp.Client, obs *observability.Observability, clock func() time.Time, log logger.Logger) *Synchronizer {
	if clock == nil {
		clock = time.Now
	}
	if client == nil {
		client = commonhttp.NewClient(config.GetDuration(cfg.Timeout))
	}
	channel := cfg.Channel
	if channel == "" {
		channel = defaultChannel
	}
	delay := config.GetDuration(cfg.DebounceMs)
	if delay <= 0 {
		delay = defaultDebounce
	}

	return &Synchronizer{
		client:    client,
		enabled:   cfg.Enabled,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		channel:   channel,
		userAgent: cfg.UserAgent,
		userID:    SanitizeUserIdentifier(fmt.Sprintf("%s_user_%d", channel, clock().UnixMilli())),
		debounce:  delay,
		pending:   debounce.New(delay),
		now:       clock,
		obs:       obs,
		log:       log.WithFields(map[string]interface{}{"component": "state_sync", "channel": channel}),
	}
}

func (s *Synchronizer) Enabled() bool {
	return s.enabled
}

// UserIdentifier is the identifier states are saved and retrieved under.
func (s *Synchronizer) UserIdentifier() string {
	return s.userID
}

// SetUserIdentifier replaces the generated identifier, e.g. with a phone
// number or e-mail once the applicant has entered one.
func (s *Synchronizer) SetUserIdentifier(id string) {
	if cleaned := SanitizeUserIdentifier(id); cleaned != "" {
		s.userID = cleaned
	}
}

// BuildSaveRequest sanitizes the inputs into the wire payload.
func (s *Synchronizer) BuildSaveRequest(sessionID string, step models.StepName, formData map[string]interface{}) SaveRequest {
	now := s.now()
	return SaveRequest{
		SessionID:      SanitizeSessionID(sessionID, now),
		Channel:        s.channel,
		UserIdentifier: s.userID,
		CurrentStep:    string(SanitizeStep(string(step))),
		FormData:       SanitizeFormData(formData),
		Metadata: SaveMetadata{
			UserAgent: s.userAgent,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}
}

// Push sends one snapshot to the state API. Disabled synchronizers do nothing.
func (s *Synchronizer) Push(ctx context.Context, sessionID string, step models.StepName, formData map[string]interface{}) error {
	if !s.enabled {
		return nil
	}

	req := s.BuildSaveRequest(sessionID, step, formData)
	log := s.log.WithFields(map[string]interface{}{
		"sessionId":   req.SessionID,
		"currentStep": req.CurrentStep,
		"dataKeys":    len(req.FormData),
	})

	start := time.Now()
	resp, err := s.client.PostJSON(ctx, s.baseURL+SavePath, req)
	if err != nil {
		stdErr := errors.NewSyncFailedError(err)
		if ctx.Err() != nil {
			stdErr = errors.NewSyncTimeoutError(err)
		}
		s.record(ctx, start, "error")
		log.WithError(stdErr).Error("Failed to push state", nil)
		return stdErr
	}

	if !resp.OK() {
		stdErr := errors.NewSyncRejectedError(resp.StatusCode, clip(resp.Body))
		s.record(ctx, start, "rejected")
		log.WithError(stdErr).Error("State API rejected push", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return stdErr
	}

	var out SaveResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil || !out.Success {
		stdErr := errors.NewSyncRejectedError(resp.StatusCode, clip(resp.Body))
		s.record(ctx, start, "rejected")
		log.WithError(stdErr).Error("State API did not confirm push", nil)
		return stdErr
	}

	s.record(ctx, start, "ok")
	log.Debug("State pushed", map[string]interface{}{"stateId": out.StateID, "expiresAt": out.ExpiresAt})
	return nil
}

// Retrieve asks the state API for the newest resumable state of user. An
// empty user means this synchronizer's own identifier. No state is (nil, nil).
func (s *Synchronizer) Retrieve(ctx context.Context, user string) (*RemoteState, error) {
	if user == "" {
		user = s.userID
	}
	return s.fetch(ctx, RetrievePath, RetrieveRequest{User: user, Channel: s.channel}, map[string]interface{}{"user": user})
}

// Resume asks the state API for the state saved under a reference code.
// An unknown or expired code is (nil, nil).
func (s *Synchronizer) Resume(ctx context.Context, referenceCode string) (*RemoteState, error) {
	return s.fetch(ctx, ResumePath, ResumeRequest{ReferenceCode: referenceCode}, map[string]interface{}{"referenceCode": referenceCode})
}

func (s *Synchronizer) fetch(ctx context.Context, path string, body interface{}, fields map[string]interface{}) (*RemoteState, error) {
	resp, err := s.client.PostJSON(ctx, s.baseURL+path, body)
	if err != nil {
		stdErr := errors.NewSyncFailedError(err)
		s.log.WithError(stdErr).Warn("Failed to fetch state", fields)
		return nil, stdErr
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !resp.OK() {
		stdErr := errors.NewSyncRejectedError(resp.StatusCode, clip(resp.Body))
		s.log.WithError(stdErr).Warn("State API rejected lookup", fields)
		return nil, stdErr
	}

	var state RemoteState
	if err := json.Unmarshal(resp.Body, &state); err != nil {
		return nil, errors.NewSyncRejectedError(resp.StatusCode, clip(resp.Body))
	}
	if !state.Success {
		return nil, nil
	}
	if state.FormData == nil {
		state.FormData = map[string]interface{}{}
	}
	return &state, nil
}

// DebouncedPush schedules a Push. Only the last call in a burst is sent.
func (s *Synchronizer) DebouncedPush(sessionID string, step models.StepName, formData map[string]interface{}, delay time.Duration) {
	if !s.enabled {
		return
	}
	if delay <= 0 {
		delay = s.debounce
	}
	// sanitizing here takes a copy, so later caller mutations are not sent
	cleaned := SanitizeFormData(formData)
	s.pending.ScheduleAfter(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		// the error has been logged and counted; there is no caller to return it to
		_ = s.Push(ctx, sessionID, step, cleaned)
	})
}

// Flush sends a pending debounced push now.
func (s *Synchronizer) Flush() bool {
	return s.pending.Flush()
}

// Cancel drops a pending debounced push.
func (s *Synchronizer) Cancel() bool {
	return s.pending.Cancel()
}

func (s *Synchronizer) record(ctx context.Context, start time.Time, outcome string) {
	d := time.Since(start)
	metrics.SyncPushes.WithLabelValues(outcome).Inc()
	metrics.SyncPushDuration.Observe(d.Seconds())
	s.obs.RecordPush(ctx, d, outcome)
}

func clip(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody])
	}
	return string(body)
}
