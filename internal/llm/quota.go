package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/quillview/litsynth/internal/domain"
)

// QuotaLimiter enforces a process-wide budget on outbound model and search
// calls. A single limiter is shared by every concurrent run so a batch
// cannot exceed the account's rate limits no matter how many runs are in
// flight. It is safe for concurrent use.
type QuotaLimiter struct {
	limiter       *rate.Limiter
	callsPerMin   int
	waitOnExhaust bool
}

// NewQuotaLimiter creates a limiter allowing callsPerMinute sustained calls
// with the given burst. When waitOnExhaust is true, Acquire blocks until a
// token is available or the context expires; when false, Acquire fails fast
// with a QuotaExceededError.
func NewQuotaLimiter(callsPerMinute, burst int, waitOnExhaust bool) *QuotaLimiter {
	return &QuotaLimiter{
		limiter:       rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), burst),
		callsPerMin:   callsPerMinute,
		waitOnExhaust: waitOnExhaust,
	}
}

// Acquire consumes one call from the quota. It returns a QuotaExceededError
// when the quota is exhausted and the limiter is configured to fail fast,
// or the context error when the wait is cut short.
func (q *QuotaLimiter) Acquire(ctx context.Context) error {
	if q == nil {
		return nil
	}
	if q.waitOnExhaust {
		if err := q.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		return nil
	}
	reservation := q.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return &domain.QuotaExceededError{Limit: q.callsPerMin, RetryAfter: delay}
	}
	return nil
}

// Tokens returns the number of calls currently available without waiting.
func (q *QuotaLimiter) Tokens() float64 {
	return q.limiter.Tokens()
}
