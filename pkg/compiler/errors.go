package compiler

import (
	"errors"
	"fmt"

	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// CompilationError is returned when a rebased circuit violates a predicate
// of its target. The circuit is never returned in that case.
type CompilationError struct {
	// Target is the target name, if any.
	Target string

	// Predicate names the first violated predicate.
	Predicate string

	// Detail describes the violation.
	Detail string
}

// Error implements the error interface.
func (e *CompilationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("compilation for %s failed: %s: %s", e.Target, e.Predicate, e.Detail)
	}
	return fmt.Sprintf("compilation failed: %s: %s", e.Predicate, e.Detail)
}

// Code returns the stable error code.
func (e *CompilationError) Code() string {
	return qerrors.ErrCodeCompilation
}

// IsCompilationError returns true if err is a CompilationError.
func IsCompilationError(err error) bool {
	var e *CompilationError
	return errors.As(err, &e)
}
