package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepErrorWrapping(t *testing.T) {
	err := NewStepError(StageResearch, ErrNoPapers, false)

	assert.ErrorIs(t, err, ErrNoPapers)
	assert.Contains(t, err.Error(), "research")
	assert.Contains(t, err.Error(), "degraded")
	assert.False(t, IsFatalStepError(err))

	fatal := NewStepError(StageWrite, errors.New("provider timeout"), true)
	assert.Contains(t, fatal.Error(), "fatal")
	assert.True(t, IsFatalStepError(fatal))

	assert.False(t, IsFatalStepError(errors.New("plain")))
	assert.False(t, IsFatalStepError(nil))
}

func TestQuotaExceededError(t *testing.T) {
	err := &QuotaExceededError{Limit: 100}
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "100")

	withRetry := &QuotaExceededError{Limit: 100, RetryAfter: 2 * time.Second}
	assert.Contains(t, withRetry.Error(), "retry after")
}

func TestExternalAPIError(t *testing.T) {
	err := &ExternalAPIError{Service: "semanticscholar", StatusCode: 429, Message: "too many requests", Retryable: true}
	assert.Contains(t, err.Error(), "semanticscholar")
	assert.Contains(t, err.Error(), "429")

	noStatus := &ExternalAPIError{Service: "arxiv", Message: "connection reset"}
	assert.Contains(t, noStatus.Error(), "connection reset")
	assert.NotContains(t, noStatus.Error(), "status")
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "query", Message: "must not be empty"}
	assert.Contains(t, err.Error(), "query")
	assert.Contains(t, err.Error(), "must not be empty")
}
