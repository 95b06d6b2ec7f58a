package programs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// UnsupportedProgramTypeError is returned when a value does not match any
// registered program type, or a type name is unknown to the catalog.
type UnsupportedProgramTypeError struct {
	// GoType is the dynamic Go type of the rejected value, if any.
	GoType string

	// Name is the rejected type name, if the lookup was by name.
	Name string

	// Known lists the registered program types.
	Known []ProgramType
}

// Error implements the error interface.
func (e *UnsupportedProgramTypeError) Error() string {
	known := make([]string, len(e.Known))
	for i, k := range e.Known {
		known[i] = string(k)
	}
	subject := fmt.Sprintf("Go type %s", e.GoType)
	if e.Name != "" {
		subject = fmt.Sprintf("program type %q", e.Name)
	}
	return fmt.Sprintf("unsupported program: %s is not registered (known: %s)", subject, strings.Join(known, ", "))
}

// Code returns the stable error code.
func (e *UnsupportedProgramTypeError) Code() string {
	return qerrors.ErrCodeUnsupportedProgram
}

// IsUnsupported returns true if err is an UnsupportedProgramTypeError.
func IsUnsupported(err error) bool {
	var e *UnsupportedProgramTypeError
	return errors.As(err, &e)
}
