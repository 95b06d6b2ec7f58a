package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qasm"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// readProgram reads and decodes a program. Without from, OpenQASM input is
// recognised by its version header.
func readProgram(catalog *programs.Catalog, path, from string) (any, programs.ProgramType, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, "", err
	}

	var t programs.ProgramType
	if from != "" {
		t, err = catalog.Resolve(from)
		if err != nil {
			return nil, "", err
		}
	} else {
		version, derr := qasm.DetectVersion(string(data))
		if derr != nil {
			return nil, "", qerrors.NewInvalid("cannot detect program type, pass --from", derr).
				WithCode(qerrors.ErrCodeValidation)
		}
		t = programs.QASM2
		if version == 3 {
			t = programs.QASM3
		}
	}

	program, err := catalog.Decode(t, data)
	if err != nil {
		return nil, "", err
	}
	return program, t, nil
}

// writeProgram encodes program to path, or stdout when path is empty or "-".
func writeProgram(catalog *programs.Catalog, program any, path string) error {
	data, _, err := catalog.Encode(program)
	if err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// resolveTypes resolves a list of program type names.
func resolveTypes(catalog *programs.Catalog, names []string) ([]programs.ProgramType, error) {
	out := make([]programs.ProgramType, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		t, err := catalog.Resolve(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
