// Package errors provides standardized error handling for the outreach
// sequencing engine. Provider failures are classified by machine-readable
// codes, never by matching message text.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Provider send failures.
	ErrCodeQuotaDailyExceeded  ErrorCode = "QUOTA_DAILY_EXCEEDED"
	ErrCodeQuotaWeeklyExceeded ErrorCode = "QUOTA_WEEKLY_EXCEEDED"
	ErrCodeAccountDisconnected ErrorCode = "ACCOUNT_DISCONNECTED"
	ErrCodeInvalidTarget       ErrorCode = "INVALID_TARGET"
	ErrCodeTransientSend       ErrorCode = "TRANSIENT_SEND_FAILURE"

	// Enqueue-time rejections.
	ErrCodeDuplicateContact ErrorCode = "DUPLICATE_CONTACT"

	// Infrastructure.
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCASConflict          ErrorCode = "CAS_CONFLICT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewDailyQuotaExceededError creates a recoverable daily-window quota error.
// The sequence suspends until local midnight and retries the same step.
func NewDailyQuotaExceededError(accountID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaDailyExceeded,
		Message:   "Daily send quota exhausted",
		Details:   fmt.Sprintf("accountId: %s", accountID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWeeklyQuotaExceededError creates a recoverable weekly-window quota error.
func NewWeeklyQuotaExceededError(accountID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaWeeklyExceeded,
		Message:   "Weekly send quota exhausted",
		Details:   fmt.Sprintf("accountId: %s", accountID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAccountDisconnectedError creates a fatal account-level error. All
// sequences on the account pause; contacts are not marked failed.
func NewAccountDisconnectedError(accountID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAccountDisconnected,
		Message:   "Provider account disconnected or revoked",
		Details:   fmt.Sprintf("accountId: %s", accountID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTargetError creates a terminal per-contact error.
func NewInvalidTargetError(identifier string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTarget,
		Message:   "Target identifier invalid or not found",
		Details:   fmt.Sprintf("identifier: %s", identifier),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientSendError creates a retryable network/provider error.
func NewTransientSendError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientSend,
		Message:   "Transient provider error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateContactError creates a terminal enqueue-time rejection.
func NewDuplicateContactError(identityKey, otherCampaign string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateContact,
		Message:   "Identity already contacted by another campaign",
		Details:   fmt.Sprintf("identityKey: %s, campaign: %s", identityKey, otherCampaign),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable database error.
func NewQueryExecutionFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCASConflictError signals a lost compare-and-set race. The caller
// should treat the row as claimed by someone else, not as a failure.
func NewCASConflictError(op string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCASConflict,
		Message:   "Conditional update matched no rows",
		Details:   fmt.Sprintf("op: %s", op),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// MaxAttempts returns the bounded attempt count for a code before the
// step is marked failed.
func MaxAttempts(code ErrorCode) int {
	switch code {
	case ErrCodeTransientSend, ErrCodeQueryExecutionFailed:
		return 3
	case ErrCodeQuotaDailyExceeded, ErrCodeQuotaWeeklyExceeded:
		// Quota exhaustion retries after the window resets, it does not
		// consume the attempt budget.
		return 0
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable at the step
// level (quota codes are retryable too, but on the quota window, not the
// backoff schedule).
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeTransientSend, ErrCodeQueryExecutionFailed,
		ErrCodeQuotaDailyExceeded, ErrCodeQuotaWeeklyExceeded:
		return true
	}
	return false
}
