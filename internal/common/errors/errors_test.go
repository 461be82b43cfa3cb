// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := NewInvalidTargetError("in/nobody")
	assert.Equal(t, ErrCodeInvalidTarget, CodeOf(err))
	assert.True(t, IsCode(err, ErrCodeInvalidTarget))

	wrapped := fmt.Errorf("send step: %w", err)
	assert.Equal(t, ErrCodeInvalidTarget, CodeOf(wrapped))

	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain error")))
}

func TestRetryPolicy(t *testing.T) {
	assert.Equal(t, 3, MaxAttempts(ErrCodeTransientSend))
	assert.Equal(t, 3, MaxAttempts(ErrCodeQueryExecutionFailed))

	// Quota exhaustion waits for the window boundary instead of burning
	// the attempt budget.
	assert.Equal(t, 0, MaxAttempts(ErrCodeQuotaDailyExceeded))
	assert.Equal(t, 0, MaxAttempts(ErrCodeQuotaWeeklyExceeded))
	assert.Equal(t, 0, MaxAttempts(ErrCodeInvalidTarget))

	assert.True(t, IsRetryableErrorCode(ErrCodeTransientSend))
	assert.True(t, IsRetryableErrorCode(ErrCodeQuotaDailyExceeded))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidTarget))
	assert.False(t, IsRetryableErrorCode(ErrCodeAccountDisconnected))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateContact))
}

func TestRetryableFlagMatchesPolicy(t *testing.T) {
	retryable := []*StandardError{
		NewDailyQuotaExceededError("acc-1"),
		NewWeeklyQuotaExceededError("acc-1"),
		NewTransientSendError(fmt.Errorf("timeout")),
		NewQueryExecutionFailedError("get_contact", fmt.Errorf("conn reset")),
	}
	for _, err := range retryable {
		assert.True(t, err.Retryable, "code %s", err.Code)
		assert.True(t, IsRetryableErrorCode(err.Code), "code %s", err.Code)
	}

	terminal := []*StandardError{
		NewAccountDisconnectedError("acc-1"),
		NewInvalidTargetError("in/nobody"),
		NewDuplicateContactError("in/ada", "camp-2"),
		NewCASConflictError("mark_send_sent"),
	}
	for _, err := range terminal {
		assert.False(t, err.Retryable, "code %s", err.Code)
		assert.False(t, IsRetryableErrorCode(err.Code), "code %s", err.Code)
	}
}
