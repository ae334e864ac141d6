package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or invalid required input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing document or a lookup with no match.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a document that is already there.
	ErrExists = errors.New("document already exists")
)

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundKind distinguishes what could not be found.
type NotFoundKind string

const (
	NotFoundDocument NotFoundKind = "document"
	NotFoundEntry    NotFoundKind = "entry"
)

// NotFoundError reports a missing document or an annotate pattern with no match.
type NotFoundError struct {
	Kind   NotFoundKind
	Target string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case NotFoundDocument:
		return fmt.Sprintf("document not found: %s", e.Target)
	default:
		return fmt.Sprintf("no entry matches url pattern: %s", e.Target)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError describes a malformed entry block. Parsing recovers from it by
// skipping the block.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed entry block at line %d: %s", e.Line, e.Reason)
}
