// internal/statesync/synchronizer_test.go
package statesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/errors"
	commonhttp "application-wizard/internal/common/http"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

func createTestConfig(baseURL string) config.SyncConfig {
	return config.SyncConfig{
		Enabled:    true,
		BaseURL:    baseURL + "/",
		Channel:    "web",
		UserAgent:  "wizard-test",
		Timeout:    2000,
		DebounceMs: 10,
	}
}

// stateAPI records save requests and answers with canned responses.
type stateAPI struct {
	mu       sync.Mutex
	saves    []SaveRequest
	saveCode int
	saveBody string
	retrieve func(w http.ResponseWriter, req RetrieveRequest)
	resume   func(w http.ResponseWriter, req ResumeRequest)
}

func (a *stateAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SavePath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SaveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		a.mu.Lock()
		a.saves = append(a.saves, req)
		code, body := a.saveCode, a.saveBody
		a.mu.Unlock()

		if code == 0 {
			code = http.StatusOK
		}
		if body == "" {
			body = `{"success":true,"state_id":"9f1c","expires_at":"2025-03-16T09:30:00Z"}`
		}
		w.WriteHeader(code)
		w.Write([]byte(body))
	})
	mux.HandleFunc(RetrievePath, func(w http.ResponseWriter, r *http.Request) {
		var req RetrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		a.retrieve(w, req)
	})
	mux.HandleFunc(ResumePath, func(w http.ResponseWriter, r *http.Request) {
		var req ResumeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		a.resume(w, req)
	})
	return mux
}

func (a *stateAPI) saveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saves)
}

func (a *stateAPI) lastSave() SaveRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves[len(a.saves)-1]
}

func setupSynchronizer(t *testing.T, api *stateAPI) *Synchronizer {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	client := commonhttp.NewClientWith(srv.Client())
	return NewSynchronizer(createTestConfig(srv.URL), client, nil, func() time.Time { return testNow }, logger.NewTestLogger(t))
}

// ==========================
// Push
// ==========================

func TestPush_SendsSanitizedPayload(t *testing.T) {
	api := &stateAPI{}
	s := setupSynchronizer(t, api)

	err := s.Push(context.Background(), "web_1 <x>", "bogusStep", map[string]interface{}{
		"amount":   "2500",
		"personal": map[string]interface{}{"firstName": "Tendai!"},
	})
	require.NoError(t, err)

	got := api.lastSave()
	assert.Equal(t, "web_1x", got.SessionID)
	assert.Equal(t, "web", got.Channel)
	assert.Equal(t, "web_user_1742031000000", got.UserIdentifier)
	assert.Equal(t, "product", got.CurrentStep)
	assert.Equal(t, 2500.0, got.FormData["amount"])
	assert.Equal(t, "Tendai", got.FormData["personal"].(map[string]interface{})["firstName"])
	assert.Equal(t, "wizard-test", got.Metadata.UserAgent)
	assert.Equal(t, "2025-03-15T09:30:00Z", got.Metadata.Timestamp)
}

func TestPush_Failures(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		body      string
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{name: "validation error", code: http.StatusUnprocessableEntity, body: `{"success":false,"errors":{"session_id":["bad"]}}`, wantCode: errors.ErrCodeSyncRejected},
		{name: "server error", code: http.StatusInternalServerError, body: `oops`, wantCode: errors.ErrCodeSyncRejected, retryable: true},
		{name: "unconfirmed", code: http.StatusOK, body: `{"success":false}`, wantCode: errors.ErrCodeSyncRejected},
		{name: "not json", code: http.StatusOK, body: `<html>`, wantCode: errors.ErrCodeSyncRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stateAPI{saveCode: tt.code, saveBody: tt.body}
			s := setupSynchronizer(t, api)

			err := s.Push(context.Background(), "web_1", models.StepForm, nil)
			require.Error(t, err)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Equal(t, 1, api.saveCount(), "no retry")
		})
	}
}

func TestPush_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewSynchronizer(createTestConfig(url), nil, nil, nil, logger.NewTestLogger(t))
	err := s.Push(context.Background(), "web_1", models.StepForm, nil)

	assert.True(t, errors.HasCode(err, errors.ErrCodeSyncFailed))
}

func TestPush_ContextCancelled(t *testing.T) {
	api := &stateAPI{}
	s := setupSynchronizer(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Push(ctx, "web_1", models.StepForm, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSyncTimeout))
}

func TestPush_Disabled(t *testing.T) {
	api := &stateAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	cfg := createTestConfig(srv.URL)
	cfg.Enabled = false
	s := NewSynchronizer(cfg, nil, nil, nil, logger.NewTestLogger(t))

	assert.NoError(t, s.Push(context.Background(), "web_1", models.StepForm, nil))
	assert.Equal(t, 0, api.saveCount())
	assert.False(t, s.Enabled())
}

// ==========================
// Retrieve
// ==========================

func TestRetrieve(t *testing.T) {
	api := &stateAPI{retrieve: func(w http.ResponseWriter, req RetrieveRequest) {
		assert.Equal(t, "web", req.Channel)
		if req.User != "known@example.com" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"message":"No active state found"}`))
			return
		}
		w.Write([]byte(`{"success":true,"session_id":"web_1","current_step":"form","form_data":{"employer":"government-ssb"},"can_resume":true,"expires_in":3600}`))
	}}
	s := setupSynchronizer(t, api)
	ctx := context.Background()

	state, err := s.Retrieve(ctx, "known@example.com")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "web_1", state.SessionID)
	assert.Equal(t, "form", state.CurrentStep)
	assert.True(t, state.CanResume)
	assert.Equal(t, int64(3600), state.ExpiresIn)
	assert.Equal(t, "government-ssb", state.FormData["employer"])

	state, err = s.Retrieve(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, state, "no state for the generated identifier")
}

func TestRetrieve_ServerError(t *testing.T) {
	api := &stateAPI{retrieve: func(w http.ResponseWriter, _ RetrieveRequest) {
		w.WriteHeader(http.StatusBadGateway)
	}}
	s := setupSynchronizer(t, api)

	state, err := s.Retrieve(context.Background(), "someone")
	assert.Nil(t, state)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSyncRejected))
}

func TestResume(t *testing.T) {
	api := &stateAPI{resume: func(w http.ResponseWriter, req ResumeRequest) {
		if req.ReferenceCode != "08204782Q29" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"code":"STATE_NOT_FOUND","message":"No active state found"}`))
			return
		}
		w.Write([]byte(`{"success":true,"session_id":"web_7","current_step":"documents","form_data":{},"reference_code":"08204782Q29","can_resume":true,"expires_in":60}`))
	}}
	s := setupSynchronizer(t, api)
	ctx := context.Background()

	state, err := s.Resume(ctx, "08204782Q29")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "web_7", state.SessionID)
	assert.Equal(t, "08204782Q29", state.ReferenceCode)
	assert.Equal(t, "documents", state.CurrentStep)

	state, err = s.Resume(ctx, "UNKNOWN1")
	assert.NoError(t, err)
	assert.Nil(t, state)
}

func TestSetUserIdentifier(t *testing.T) {
	s := setupSynchronizer(t, &stateAPI{})

	s.SetUserIdentifier("  <>  ")
	assert.Equal(t, "web_user_1742031000000", s.UserIdentifier(), "unusable id ignored")

	s.SetUserIdentifier("+263772123456")
	assert.Equal(t, "+263772123456", s.UserIdentifier())
}

// ==========================
// Debounced push
// ==========================

func TestDebouncedPush_LastCallWins(t *testing.T) {
	api := &stateAPI{}
	s := setupSynchronizer(t, api)

	for _, step := range []models.StepName{models.StepEmployer, models.StepProduct, models.StepSummary} {
		s.DebouncedPush("web_1", step, map[string]interface{}{"step": string(step)}, 0)
	}

	assert.Eventually(t, func() bool { return api.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, api.saveCount())
	assert.Equal(t, "summary", api.lastSave().CurrentStep)
}

func TestDebouncedPush_FlushAndCancel(t *testing.T) {
	api := &stateAPI{}
	s := setupSynchronizer(t, api)

	form := map[string]interface{}{"n": "1"}
	s.DebouncedPush("web_1", models.StepForm, form, time.Hour)
	form["n"] = "2"

	require.True(t, s.Flush())
	assert.Equal(t, "1", api.lastSave().FormData["n"])

	s.DebouncedPush("web_1", models.StepForm, nil, time.Hour)
	assert.True(t, s.Cancel())
	assert.Equal(t, 1, api.saveCount())
}
