package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across packages.
var (
	// ErrInputRejected is returned by the input safety gate when the query
	// violates content policy. The run terminates as Refused.
	ErrInputRejected = errors.New("input rejected by safety gate")

	// ErrOutputRejected is returned by the output safety gate when the draft
	// cannot be made safe by masking. The run terminates as Refused.
	ErrOutputRejected = errors.New("output rejected by safety gate")

	// ErrRateLimited indicates a provider refused a request due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoPapers indicates research found zero papers. The pipeline treats
	// this as degrading, not fatal.
	ErrNoPapers = errors.New("no papers found")

	// ErrRunNotFound indicates the requested run does not exist in storage.
	ErrRunNotFound = errors.New("run not found")
)

// StepError wraps an error produced by a pipeline step with the stage at
// which it occurred and whether it terminates the run.
type StepError struct {
	Stage Stage
	Err   error
	Fatal bool
}

func (e *StepError) Error() string {
	kind := "degraded"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s step failed (%s): %v", e.Stage, kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError wraps err as a step failure at the given stage.
func NewStepError(stage Stage, err error, fatal bool) *StepError {
	return &StepError{Stage: stage, Err: err, Fatal: fatal}
}

// IsFatalStepError reports whether err is a StepError marked fatal.
func IsFatalStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Fatal
}

// QuotaExceededError indicates the process-wide LLM call quota was exhausted
// before the request could be admitted.
type QuotaExceededError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm call quota exceeded (limit %d, retry after %s)", e.Limit, e.RetryAfter)
	}
	return fmt.Sprintf("llm call quota exceeded (limit %d)", e.Limit)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError represents a failure from an external service such as a
// paper source or an LLM provider.
type ExternalAPIError struct {
	Service    string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *ExternalAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Service, e.Message)
}

// ValidationError represents a request or configuration field that failed
// validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
