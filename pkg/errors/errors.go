// Package errors provides common domain error types for the meetflow service.
//
// Sentinel errors map directly onto the webhook error taxonomy: not-found is
// a data-integrity signal (404), unauthenticated a signature failure (401),
// validation a malformed request (400), and upstream a collaborator failure
// (500). A failed status guard is NOT an error in this taxonomy; guarded
// store operations report it as a boolean so handlers can treat duplicate or
// out-of-order deliveries as benign no-ops.
package errors

import "errors"

var (
	// ErrNotFound indicates a referenced meeting or agent row is absent.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates the webhook signature or API key did not verify.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation indicates a malformed request or payload.
	ErrValidation = errors.New("validation error")

	// ErrUpstream indicates a collaborator (video, chat, LLM) call failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrEmptyCompletion indicates the language model returned no usable text.
	ErrEmptyCompletion = errors.New("empty completion")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthenticated reports whether any error in err's chain is ErrUnauthenticated.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUpstream reports whether any error in err's chain is ErrUpstream.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
