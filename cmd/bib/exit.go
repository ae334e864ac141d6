package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/bib/internal/domain"
)

// Process exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNoDoc    = 3
	exitNoMatch  = 4
	exitInvalid  = 5
	exitDocFound = 6
)

// usageError marks a malformed command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var usage *usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		if nf.Kind == domain.NotFoundEntry {
			return exitNoMatch
		}
		return exitNoDoc
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return exitInvalid
	case errors.Is(err, domain.ErrExists):
		return exitDocFound
	default:
		return exitFailure
	}
}
