package devices

import (
	"errors"
	"fmt"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// DeviceProgramTypeMismatchError is returned when a program handed to a
// device without transpilation is not of the device's program type.
type DeviceProgramTypeMismatchError struct {
	// DeviceID is the device that rejected the program.
	DeviceID string

	// Expected is the device's program type.
	Expected programs.ProgramType

	// Actual is the type of the program provided.
	Actual programs.ProgramType
}

// Error implements the error interface.
func (e *DeviceProgramTypeMismatchError) Error() string {
	return fmt.Sprintf("device %s expects %s programs, got %s", e.DeviceID, e.Expected, e.Actual)
}

// Code returns the stable error code.
func (e *DeviceProgramTypeMismatchError) Code() string {
	return qerrors.ErrCodeProgramTypeMismatch
}

// IsProgramTypeMismatch returns true if err is a DeviceProgramTypeMismatchError.
func IsProgramTypeMismatch(err error) bool {
	var e *DeviceProgramTypeMismatchError
	return errors.As(err, &e)
}

// ErrUnknownProvider is returned for a device profile naming a provider with
// no backend.
var ErrUnknownProvider = errors.New("unknown device provider")
