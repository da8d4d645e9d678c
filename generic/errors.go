/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The lessons package raises these, the API maps them to status codes.

ERROR CATEGORIES:
  1. Validation errors - Malformed input, raised before any write
  2. Reference errors - A session points at a person that does not exist
  3. Not found errors - Single-entity lookups only
  4. Conflict errors - A booking overlaps existing sessions

  Anything else (storage, transport) is wrapped with %w context by the store
  and surfaces as-is. Nothing is retried automatically.

USAGE:
  Callers branch with errors.Is / errors.As:

    var ve *generic.ValidationError
    if errors.As(err, &ve) {
        log.Printf("bad field %s: %s", ve.Field, ve.Message)
    }

SEE ALSO:
  - lessons/scheduler.go: raises these errors
  - api/handlers.go: maps them to HTTP responses
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input fails a business or format rule.
	ErrValidation = errors.New("validation failed")

	// ErrReference is returned when a session references a missing person.
	ErrReference = errors.New("unresolved person reference")

	// ErrNotFound is returned when a single requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a booking overlaps the existing timeline.
	ErrConflict = errors.New("schedule conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field from a parse error or message.
func Invalid(field string, cause any) *ValidationError {
	switch c := cause.(type) {
	case error:
		return &ValidationError{Field: field, Message: c.Error()}
	case string:
		return &ValidationError{Field: field, Message: c}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprint(c)}
	}
}

// ReferenceError identifies the person that could not be resolved.
// Either PersonID or PersonName is set.
type ReferenceError struct {
	PersonID   int64
	PersonName string
}

func (e *ReferenceError) Error() string {
	if e.PersonName != "" {
		return fmt.Sprintf("person %q does not exist", e.PersonName)
	}
	return fmt.Sprintf("person %d does not exist", e.PersonID)
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

// NotFoundError is returned by single-entity lookups (person, session).
type NotFoundError struct {
	Kind string // "person" or "session"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError lists the intervals a rejected booking overlaps.
type ConflictError struct {
	Candidate Interval
	Conflicts []Interval
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s overlaps %d existing session(s): %s",
		e.Candidate, len(e.Conflicts), strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrReference) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
