package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
var (
	ErrOrderNotFound   = errors.New("order_not_found")
	ErrEmptyBook       = errors.New("empty_book")
	ErrRejectedOrder   = errors.New("order_rejected")
	ErrBatchNotFound   = errors.New("batch_not_found")
	ErrUnknownStrategy = errors.New("unknown_strategy")
)

// ValidationError reports a configuration document failure. Validation
// runs before any simulation starts and is never partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GenerationError reports that the order flow generator produced an
// event violating its own contract. It aborts only the run it occurred in.
type GenerationError struct {
	Step   int
	Reason string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error at step %d: %s", e.Step, e.Reason)
}

// InvariantViolation indicates a matching logic defect, e.g. a crossed
// book persisting after matching settles. It is fatal to the run and is
// always surfaced, never silently corrected.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("matching invariant violation: %s", e.Detail)
}
