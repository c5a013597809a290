package queues

import "errors"

// Queue errors.
var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMessageNotFound    = errors.New("message not found")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ErrorCategory categorizes processing errors for retry decisions.
type ErrorCategory string

const (
	// ErrorCategoryTransient indicates a temporary error that should be retried.
	ErrorCategoryTransient ErrorCategory = "transient"
	// ErrorCategoryPermanent indicates an error that will not be resolved by retry.
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// ProcessingError wraps pipeline step errors with category information so
// the worker can decide between nack (retry with backoff) and dead letter.
type ProcessingError struct {
	Category ErrorCategory
	Step     string
	Message  string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return e.Step + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Step + ": " + e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error should trigger a retry.
func (e *ProcessingError) IsRetryable() bool {
	return e.Category == ErrorCategoryTransient
}

// NewTransientError creates an error for a step failure worth retrying
// (network errors, provider unavailability).
func NewTransientError(step, message string, err error) *ProcessingError {
	return &ProcessingError{
		Category: ErrorCategoryTransient,
		Step:     step,
		Message:  message,
		Err:      err,
	}
}

// NewPermanentError creates an error for a step failure that a retry cannot
// fix (malformed transcript, missing meeting row).
func NewPermanentError(step, message string, err error) *ProcessingError {
	return &ProcessingError{
		Category: ErrorCategoryPermanent,
		Step:     step,
		Message:  message,
		Err:      err,
	}
}
