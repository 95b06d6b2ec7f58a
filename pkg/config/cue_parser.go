package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

// ParsedConfig is the result of evaluating CUE sources.
type ParsedConfig struct {
	// Raw is the unified value exported as plain Go maps and slices.
	Raw map[string]interface{} `json:"raw"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists CUE evaluation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// CUEParser evaluates CUE configuration files against the #Config schema.
type CUEParser struct {
	ctx     *cue.Context
	schemas *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	schemas := NewSchemaRegistry()
	return &CUEParser{ctx: schemas.Context(), schemas: schemas}
}

// Schemas returns the parser's schema registry.
func (cp *CUEParser) Schemas() *SchemaRegistry {
	return cp.schemas
}

// Parse unifies the given files and directories and exports the result.
// Evaluation problems are reported in ParsedConfig.Errors; the returned
// error is reserved for I/O failures.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var (
		value       cue.Value
		sourceFiles []string
		parseErrors []ValidationError
	)

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var (
			val   cue.Value
			files []string
			errs  []ValidationError
		)
		if info.IsDir() {
			val, files, errs = cp.loadDirectory(source)
		} else {
			val, errs = cp.loadFile(source)
			files = []string{source}
		}
		parseErrors = append(parseErrors, errs...)
		sourceFiles = append(sourceFiles, files...)
		if val.Exists() {
			if value.Exists() {
				value = value.Unify(val)
			} else {
				value = val
			}
		}
	}

	parsed := &ParsedConfig{SourceFiles: sourceFiles, ParsedAt: time.Now()}
	if len(parseErrors) > 0 {
		parsed.Errors = parseErrors
		return parsed, nil
	}
	cp.export(value, parsed)
	return parsed, nil
}

// ParseInline evaluates inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	parsed := &ParsedConfig{SourceFiles: []string{"inline"}, ParsedAt: time.Now()}
	val := cp.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		parsed.Errors = convertCUEErrors(err)
		return parsed, nil
	}
	cp.export(val, parsed)
	return parsed, nil
}

// export checks val against #Config and stores it in parsed.Raw.
func (cp *CUEParser) export(val cue.Value, parsed *ParsedConfig) {
	if errs := cp.schemas.ValidateValue(SchemaConfig, val); len(errs) > 0 {
		parsed.Errors = append(parsed.Errors, errs...)
		return
	}
	data, err := val.MarshalJSON()
	if err != nil {
		parsed.Errors = append(parsed.Errors, convertCUEErrors(err)...)
		return
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{Message: fmt.Sprintf("configuration must be a struct: %v", err)})
		return
	}
	parsed.Raw = raw
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	instances := load.Instances([]string{dir}, nil)
	if len(instances) == 0 {
		return cue.Value{}, nil, []ValidationError{{File: dir, Message: "no CUE files found"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}
	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}
	return val, nil
}

// convertCUEErrors flattens a CUE error list with positions.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range errors.Errors(err) {
		ve := ValidationError{Message: errors.Details(e, nil)}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		if path := e.Path(); len(path) > 0 {
			ve.Path = strings.Join(path, ".")
		}
		out = append(out, ve)
	}
	return out
}
