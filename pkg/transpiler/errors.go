package transpiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// Sentinel errors.
var (
	// ErrInvalidConverter is returned when a converter is missing a type or
	// function.
	ErrInvalidConverter = qerrors.NewInvalid("invalid converter", nil).WithCode(qerrors.ErrCodeInvalidConverter)

	// ErrNilProgram is returned when a converter produces no program.
	ErrNilProgram = errors.New("converter returned a nil program")

	// ErrConverterPanic wraps a panic raised inside a converter.
	ErrConverterPanic = errors.New("converter panicked")
)

// DuplicateConversionError is returned when a converter is registered for a
// (source, target) pair that already has one.
type DuplicateConversionError struct {
	Source programs.ProgramType
	Target programs.ProgramType
}

// Error implements the error interface.
func (e *DuplicateConversionError) Error() string {
	return fmt.Sprintf("conversion %s -> %s already registered", e.Source, e.Target)
}

// Code returns the stable error code.
func (e *DuplicateConversionError) Code() string {
	return qerrors.ErrCodeDuplicateConversion
}

// ConversionPathNotFoundError is returned when no route connects source to
// target with the currently available converters.
type ConversionPathNotFoundError struct {
	Source programs.ProgramType
	Target programs.ProgramType

	// Reachable lists the types reachable from Source under the same
	// constraints, sorted.
	Reachable []programs.ProgramType

	// MaxHops is the hop bound in effect, 0 if unbounded.
	MaxHops int

	// Forbidden lists the excluded nodes.
	Forbidden []programs.ProgramType
}

// Error implements the error interface.
func (e *ConversionPathNotFoundError) Error() string {
	reach := make([]string, len(e.Reachable))
	for i, r := range e.Reachable {
		reach[i] = string(r)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "no conversion path from %s to %s", e.Source, e.Target)
	if e.MaxHops > 0 {
		fmt.Fprintf(&b, " within %d hops", e.MaxHops)
	}
	if len(e.Forbidden) > 0 {
		forbidden := make([]string, len(e.Forbidden))
		for i, f := range e.Forbidden {
			forbidden[i] = string(f)
		}
		fmt.Fprintf(&b, " avoiding [%s]", strings.Join(forbidden, ", "))
	}
	fmt.Fprintf(&b, " (reachable: [%s])", strings.Join(reach, ", "))
	return b.String()
}

// Code returns the stable error code.
func (e *ConversionPathNotFoundError) Code() string {
	return qerrors.ErrCodePathNotFound
}

// ConversionExecutionError is returned when one hop of a conversion path
// fails. Later hops are not run.
type ConversionExecutionError struct {
	// Index is the zero-based hop index.
	Index int

	Source    programs.ProgramType
	Target    programs.ProgramType
	Converter string

	// Err is the converter's error.
	Err error
}

// Error implements the error interface.
func (e *ConversionExecutionError) Error() string {
	return fmt.Sprintf("conversion hop %d (%s -> %s) failed: %v", e.Index, e.Source, e.Target, e.Err)
}

// Unwrap returns the converter's error.
func (e *ConversionExecutionError) Unwrap() error {
	return e.Err
}

// Code returns the stable error code.
func (e *ConversionExecutionError) Code() string {
	return qerrors.ErrCodeExecutionFailed
}

// ConversionPolicyError is returned when an enforcing policy rejects a
// resolved path.
type ConversionPolicyError struct {
	Path       Path
	Violations []string
}

// Error implements the error interface.
func (e *ConversionPolicyError) Error() string {
	return fmt.Sprintf("conversion path %s denied by policy: %s", e.Path, strings.Join(e.Violations, "; "))
}

// Code returns the stable error code.
func (e *ConversionPolicyError) Code() string {
	return qerrors.ErrCodePolicyDenied
}

// IsPathNotFound returns true if err is a ConversionPathNotFoundError.
func IsPathNotFound(err error) bool {
	var e *ConversionPathNotFoundError
	return errors.As(err, &e)
}

// IsExecutionError returns true if err is a ConversionExecutionError.
func IsExecutionError(err error) bool {
	var e *ConversionExecutionError
	return errors.As(err, &e)
}

// IsDuplicate returns true if err is a DuplicateConversionError.
func IsDuplicate(err error) bool {
	var e *DuplicateConversionError
	return errors.As(err, &e)
}

// IsPolicyDenied returns true if err is a ConversionPolicyError.
func IsPolicyDenied(err error) bool {
	var e *ConversionPolicyError
	return errors.As(err, &e)
}
