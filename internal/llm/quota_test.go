package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/litsynth/internal/domain"
)

func TestQuotaLimiterFailFast(t *testing.T) {
	q := NewQuotaLimiter(60, 2, false)

	require.NoError(t, q.Acquire(context.Background()))
	require.NoError(t, q.Acquire(context.Background()))

	err := q.Acquire(context.Background())
	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 60, quotaErr.Limit)
	assert.Greater(t, quotaErr.RetryAfter, time.Duration(0))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestQuotaLimiterWaitRespectsContext(t *testing.T) {
	q := NewQuotaLimiter(60, 1, true)
	require.NoError(t, q.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQuotaLimiterNilIsNoop(t *testing.T) {
	var q *QuotaLimiter
	assert.NoError(t, q.Acquire(context.Background()))
}
