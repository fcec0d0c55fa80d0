// internal/common/errors/errors.go

// Package errors provides standardized error handling for the wizard core,
// the state API and BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Session state
	ErrCodeSessionPersistFailed ErrorCode = "SESSION_PERSIST_FAILED"
	ErrCodeSessionCorrupt       ErrorCode = "SESSION_CORRUPT"

	// Remote synchronization
	ErrCodeSyncFailed   ErrorCode = "SYNC_FAILED"
	ErrCodeSyncRejected ErrorCode = "SYNC_REJECTED"
	ErrCodeSyncTimeout  ErrorCode = "SYNC_TIMEOUT"

	// State API
	ErrCodeStateNotFound       ErrorCode = "STATE_NOT_FOUND"
	ErrCodeInvalidStateRequest ErrorCode = "INVALID_STATE_REQUEST"
	ErrCodeStateLocked         ErrorCode = "STATE_LOCKED"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"

	// Wizard
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeStepTransitionFailed        ErrorCode = "STEP_TRANSITION_FAILED"
	ErrCodeFlowNotFound                ErrorCode = "FLOW_NOT_FOUND"
	ErrCodeUnknownVariant              ErrorCode = "UNKNOWN_VARIANT"
	ErrCodeInvalidInput                ErrorCode = "INVALID_INPUT"
	ErrCodeDuplicateApplication        ErrorCode = "DUPLICATE_APPLICATION"

	// Storage
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeCacheFailed              ErrorCode = "CACHE_FAILED"

	// Workflow engine
	ErrCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrCodeEngineTimeout     ErrorCode = "ENGINE_TIMEOUT"
	ErrCodeJobTimeout        ErrorCode = "JOB_TIMEOUT"

	// Notification Errors
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewSessionPersistFailedError is logged and swallowed by the session store.
func NewSessionPersistFailedError(tier string, err error) *StandardError {
	return newError(ErrCodeSessionPersistFailed, "Session snapshot could not be persisted",
		fmt.Sprintf("tier: %s, error: %s", tier, err.Error()), true, err)
}

func NewSessionCorruptError(err error) *StandardError {
	return newError(ErrCodeSessionCorrupt, "Stored session snapshot is unreadable", err.Error(), false, err)
}

// NewSyncFailedError covers transport failures talking to the state API.
func NewSyncFailedError(err error) *StandardError {
	return newError(ErrCodeSyncFailed, "Remote state synchronization failed", err.Error(), true, err)
}

// NewSyncRejectedError covers non-2xx answers from the state API.
func NewSyncRejectedError(status int, body string) *StandardError {
	return newError(ErrCodeSyncRejected, "Remote state endpoint rejected the snapshot",
		fmt.Sprintf("status: %d, body: %s", status, body), status >= 500, nil).
		WithMetadata("status", status)
}

func NewSyncTimeoutError(err error) *StandardError {
	return newError(ErrCodeSyncTimeout, "Remote state synchronization timed out", err.Error(), true, err)
}

func NewStateNotFoundError(user string) *StandardError {
	return newError(ErrCodeStateNotFound, "No active state found", fmt.Sprintf("user: %s", user), false, nil)
}

func NewInvalidStateRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidStateRequest, "Invalid state request", details, false, nil)
}

func NewStateLockedError(sessionID string) *StandardError {
	return newError(ErrCodeStateLocked, "State is being updated by another request",
		fmt.Sprintf("sessionId: %s", sessionID), true, nil)
}

func NewRateLimitedError(client string) *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", fmt.Sprintf("client: %s", client), true, nil)
}

func NewApplicationValidationFailedError(rule, message string) *StandardError {
	return newError(ErrCodeApplicationValidationFailed, message, fmt.Sprintf("rule: %s", rule), false, nil).
		WithMetadata("rule", rule)
}

func NewStepTransitionFailedError(step string, details string) *StandardError {
	return newError(ErrCodeStepTransitionFailed, "Step transition not allowed",
		fmt.Sprintf("step: %s, %s", step, details), false, nil)
}

func NewFlowNotFoundError(flow string) *StandardError {
	return newError(ErrCodeFlowNotFound, "Flow not found in registry", fmt.Sprintf("flow: %s", flow), false, nil)
}

func NewUnknownVariantError(variant string) *StandardError {
	return newError(ErrCodeUnknownVariant, "Unknown product variant", fmt.Sprintf("variant: %s", variant), false, nil)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false, nil)
}

func NewDuplicateApplicationError(referenceCode string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "National ID is already associated with another application",
		fmt.Sprintf("referenceCode: %s", referenceCode), false, nil).
		WithMetadata("referenceCode", referenceCode)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true, nil)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true, err)
}

func NewCacheFailedError(op string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Cache operation failed", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewEngineUnavailableError(op string, err error) *StandardError {
	return newError(ErrCodeEngineUnavailable, "Workflow engine unavailable", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewEngineTimeoutError(op string, err error) *StandardError {
	return newError(ErrCodeEngineTimeout, "Workflow engine timeout", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewJobTimeoutError(err error) *StandardError {
	return newError(ErrCodeJobTimeout, "Job did not finish in time", err.Error(), true, err)
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Applicant notification could not be delivered",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err).
		WithMetadata("channel", channel)
}

// ==========================
// 4. Classification
// ==========================

// AsStandardError unwraps err into a StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeCacheFailed,
		ErrCodeEngineUnavailable,
		ErrCodeNotificationFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeSyncTimeout,
		ErrCodeStateLocked,
		ErrCodeEngineTimeout,
		ErrCodeJobTimeout:
		return 2 // Partial retry for timeouts

	case ErrCodeSyncFailed:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.HasPrefix(codeStr, "SYNC"):
		return "SYNC"
	case strings.HasPrefix(codeStr, "ENGINE") || code == ErrCodeJobTimeout:
		return "ENGINE"
	case strings.HasPrefix(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "STATE") || code == ErrCodeRateLimited:
		return "STATE_API"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || code == ErrCodeCacheFailed:
		return "STORAGE"
	case strings.Contains(codeStr, "VALIDATION") || code == ErrCodeInvalidInput:
		return "VALIDATION"
	case code == ErrCodeStepTransitionFailed || code == ErrCodeFlowNotFound || code == ErrCodeUnknownVariant ||
		code == ErrCodeDuplicateApplication:
		return "WIZARD"
	default:
		return "UNKNOWN"
	}
}
