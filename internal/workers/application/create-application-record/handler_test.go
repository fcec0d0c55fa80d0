// internal/workers/application/create-application-record/handler_test.go
package createapplicationrecord

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

func createTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(LoadConfig(config.WorkerConfig{}), db, logger.NewTestLogger(t))
	h.now = func() time.Time { return testNow }
	return h, mock
}

const submissionJob = `{
  "submission": {
    "sessionId": "sess-001",
    "formType": "ssb",
    "formId": "ssb_account_opening_form.json",
    "variant": "ssb",
    "formResponses": {
      "sessionId": "sess-001",
      "personal": {"firstName": "Tendai", "surname": "Moyo", "nationalIdNumber": "63-123456-a-78"}
    },
    "submittedAt": "2025-03-15T09:00:00Z"
  }
}`

func parseJob(t *testing.T, h *Handler, raw string) *Input {
	t.Helper()
	input, err := h.parseInput([]byte(raw))
	require.NoError(t, err)
	return input
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	h, mock := createTestHandler(t)
	input := parseJob(t, h, submissionJob)

	mock.ExpectQuery(`SELECT id, session_id, status, created_at FROM applications`).
		WithArgs("63123456A78", "sess-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "status", "created_at"}))

	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs(
			sqlmock.AnyArg(), // application ID (UUID)
			"sess-001",
			"63123456A78",
			"ssb",
			"ssb_account_opening_form.json",
			"ssb",
			sqlmock.AnyArg(), // submission JSON
			StatusSubmitted,
			time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
			testNow,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("application_created", "application", sqlmock.AnyArg(), sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	out, err := h.execute(context.Background(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, out.ApplicationID)
	assert.Equal(t, "63123456A78", out.ReferenceCode)
	assert.Equal(t, StatusSubmitted, out.ApplicationStatus)
	assert.Equal(t, "2025-03-15T09:30:00Z", out.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AuditFailureIsNotFatal(t *testing.T) {
	h, mock := createTestHandler(t)
	input := parseJob(t, h, submissionJob)

	mock.ExpectQuery(`SELECT id, session_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "status", "created_at"}))
	mock.ExpectExec(`INSERT INTO applications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnError(stdErrors.New("audit table locked"))

	out, err := h.execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, out.ApplicationStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RetriedJobIsIdempotent(t *testing.T) {
	h, mock := createTestHandler(t)
	input := parseJob(t, h, submissionJob)

	created := time.Date(2025, 3, 15, 9, 1, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, session_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "status", "created_at"}).
			AddRow("app-001", "sess-001", "submitted", created))

	out, err := h.execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "app-001", out.ApplicationID)
	assert.Equal(t, "2025-03-15T09:01:00Z", out.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Failure Tests
// ==========================

func TestHandler_Execute_DuplicateNationalID(t *testing.T) {
	h, mock := createTestHandler(t)
	input := parseJob(t, h, submissionJob)

	mock.ExpectQuery(`SELECT id, session_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "status", "created_at"}).
			AddRow("app-999", "sess-other", "submitted", testNow))

	_, err := h.execute(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateApplication))

	bpmn := errors.ConvertToBPMNError(err.(*errors.StandardError))
	assert.Equal(t, 0, bpmn.Retries)
	assert.Equal(t, "63123456A78", bpmn.ErrorVariables["referenceCode"])
}

func TestHandler_Execute_DatabaseErrors(t *testing.T) {
	t.Run("duplicate check", func(t *testing.T) {
		h, mock := createTestHandler(t)
		input := parseJob(t, h, submissionJob)

		mock.ExpectQuery(`SELECT id, session_id`).WillReturnError(stdErrors.New("connection reset"))

		_, err := h.execute(context.Background(), input)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeQueryExecutionFailed))
	})

	t.Run("insert", func(t *testing.T) {
		h, mock := createTestHandler(t)
		input := parseJob(t, h, submissionJob)

		mock.ExpectQuery(`SELECT id, session_id`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "status", "created_at"}))
		mock.ExpectExec(`INSERT INTO applications`).WillReturnError(stdErrors.New("disk full"))

		_, err := h.execute(context.Background(), input)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseInsertFailed))

		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.True(t, stdErr.Retryable)
	})
}

func TestHandler_Execute_MissingNationalID(t *testing.T) {
	h, mock := createTestHandler(t)
	input := parseJob(t, h, `{
	  "submission": {
	    "sessionId": "sess-002",
	    "formType": "account_holders",
	    "formId": "account_holder_loan_application.json",
	    "variant": "account_holder",
	    "formResponses": {"personal": {"firstName": "Rudo"}}
	  }
	}`)

	_, err := h.execute(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_ParseInput_Invalid(t *testing.T) {
	h, _ := createTestHandler(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing submission", `{}`},
		{"missing form responses", `{"submission": {"sessionId": "s", "formType": "ssb", "formId": "f", "variant": "ssb"}}`},
		{"empty session", `{"submission": {"sessionId": "", "formType": "ssb", "formId": "f", "variant": "ssb", "formResponses": {}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
		})
	}
}

// ==========================
// Configuration Tests
// ==========================

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 10*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
}
