package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations. These map directly onto the
// error taxonomy: TransientNetworkError and PreconditionFailed are returned
// by internal/docstore, DuplicateSource and InvariantViolation originate in
// the Clustering Engine, ContentPolicyRefusal and BudgetExceeded originate in
// the Summarizer/LLM adapters.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed.
	ErrValidationFailed = errors.New("validation failed")

	// ErrPreconditionFailed indicates an optimistic-concurrency conflict: the
	// etag supplied to upsert no longer matches the stored document.
	ErrPreconditionFailed = errors.New("precondition failed: stale etag")

	// ErrDuplicateSource indicates an article's source already has an entry
	// in the target story's source_articles. Expected and logged at debug,
	// never treated as a failure.
	ErrDuplicateSource = errors.New("duplicate source for story")

	// ErrContentPolicyRefusal indicates the LLM provider declined to
	// summarize a prompt. Recorded, never retried.
	ErrContentPolicyRefusal = errors.New("llm content policy refusal")

	// ErrBudgetExceeded indicates the Summarizer's rolling-hour cost meter
	// has reached its ceiling. Never propagated past the Summarizer.
	ErrBudgetExceeded = errors.New("summarization budget exceeded")

	// ErrInvariantViolation indicates a programmer error that would
	// otherwise corrupt story/article state. Callers should let the worker
	// crash and rely on supervisor restart rather than attempt recovery.
	ErrInvariantViolation = errors.New("invariant violation")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
