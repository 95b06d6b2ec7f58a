package qerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type codedError struct{ code string }

func (e codedError) Error() string { return "coded" }
func (e codedError) Code() string  { return e.code }

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPermanent("write failed", cause).
		WithCode(ErrCodeInternal).
		WithOperation("store").
		WithDetail("path", "/tmp/x")

	msg := err.Error()
	for _, want := range []string{"[permanent]", "write failed", "operation=store", "disk full"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Details["path"] != "/tmp/x" {
		t.Errorf("detail path = %v", err.Details["path"])
	}
}

func TestErrorIs(t *testing.T) {
	a := NewInvalid("a", nil).WithCode(ErrCodeValidation)
	b := NewInvalid("b", nil).WithCode(ErrCodeValidation)
	c := NewUnavailable("c", nil).WithCode(ErrCodeValidation)

	if !errors.Is(fmt.Errorf("wrapped: %w", a), b) {
		t.Error("errors with the same class and code should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different classes should not match")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class Class
		code  string
	}{
		{"classified", NewUnavailable("x", nil).WithCode(ErrCodePathNotFound), ClassUnavailable, ErrCodePathNotFound},
		{"wrapped classified", fmt.Errorf("ctx: %w", NewInvalid("x", nil)), ClassInvalid, ErrCodeInternal},
		{"coded unsupported", codedError{ErrCodeUnsupportedProgram}, ClassInvalid, ErrCodeUnsupportedProgram},
		{"coded mismatch", codedError{ErrCodeProgramTypeMismatch}, ClassInvalid, ErrCodeProgramTypeMismatch},
		{"coded path", fmt.Errorf("ctx: %w", codedError{ErrCodePathNotFound}), ClassUnavailable, ErrCodePathNotFound},
		{"coded execution", codedError{ErrCodeExecutionFailed}, ClassPermanent, ErrCodeExecutionFailed},
		{"plain", errors.New("plain"), ClassPermanent, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.class {
				t.Errorf("ClassOf() = %s, want %s", got, tt.class)
			}
			if got := CodeOf(tt.err); got != tt.code {
				t.Errorf("CodeOf() = %q, want %q", got, tt.code)
			}
		})
	}

	if IsInvalid(nil) || IsUnavailable(nil) {
		t.Error("nil is not classified")
	}
}
