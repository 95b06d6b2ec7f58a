package plugins

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// StarlarkSpec declares a converter implemented by a Starlark script. The
// script must define convert(program) or convert(program, ctx) returning the
// converted program text, or a dict with a "program" key. ctx is a dict
// holding the converter name, source, target and lossy flag.
type StarlarkSpec struct {
	Name   string
	Source string
	Target string
	Script string
	Lossy  bool
}

// maxExecutionSteps bounds runaway scripts independently of the timeout.
const maxExecutionSteps = 50_000_000

// StarlarkConverter executes a converter script.
type StarlarkConverter struct {
	spec    StarlarkSpec
	program *starlark.Program
	timeout time.Duration
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// NewStarlarkConverter compiles a script and checks that it defines
// convert.
func NewStarlarkConverter(spec StarlarkSpec, timeout time.Duration) (*StarlarkConverter, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if spec.Name == "" {
		spec.Name = spec.Source + "_to_" + spec.Target
	}

	predeclared := predeclaredNames()
	_, program, err := starlark.SourceProgramOptions(fileOptions, spec.Name+".star", spec.Script, predeclared.Has)
	if err != nil {
		return nil, fmt.Errorf("starlark converter %s: %w", spec.Name, err)
	}

	sc := &StarlarkConverter{spec: spec, program: program, timeout: timeout}

	globals, err := sc.init(context.Background())
	if err != nil {
		return nil, err
	}
	if _, ok := globals["convert"].(starlark.Callable); !ok {
		return nil, fmt.Errorf("starlark converter %s does not define convert()", spec.Name)
	}
	return sc, nil
}

// Spec returns the converter declaration.
func (sc *StarlarkConverter) Spec() StarlarkSpec {
	return sc.spec
}

func predeclaredNames() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

// newThread creates a thread that is cancelled when ctx is done.
func (sc *StarlarkConverter) newThread(ctx context.Context) (*starlark.Thread, func()) {
	thread := &starlark.Thread{
		Name: sc.spec.Name,
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(maxExecutionSteps)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(fmt.Sprintf("execution timeout after %v", sc.timeout))
		case <-done:
		}
	}()
	return thread, func() { close(done) }
}

// init runs the script's top level and returns its globals.
func (sc *StarlarkConverter) init(ctx context.Context) (starlark.StringDict, error) {
	ctx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	thread, stop := sc.newThread(ctx)
	defer stop()

	globals, err := sc.program.Init(thread, predeclaredNames())
	if err != nil {
		return nil, fmt.Errorf("starlark converter %s: %w", sc.spec.Name, err)
	}
	globals.Freeze()
	return globals, nil
}

// Convert calls convert(program, ctx) and returns the produced program text.
func (sc *StarlarkConverter) Convert(ctx context.Context, program string) (string, error) {
	globals, err := sc.init(ctx)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	thread, stop := sc.newThread(callCtx)
	defer stop()

	convert := globals["convert"]
	args := starlark.Tuple{starlark.String(program), sc.conversionInfo()}
	if fn, ok := convert.(*starlark.Function); ok && fn.NumParams() == 1 {
		args = args[:1]
	}

	result, err := starlark.Call(thread, convert, args, nil)
	if err != nil {
		if callCtx.Err() != nil {
			return "", fmt.Errorf("starlark converter %s timed out after %v", sc.spec.Name, sc.timeout)
		}
		return "", fmt.Errorf("starlark converter %s: %w", sc.spec.Name, err)
	}

	if out, ok := programText(result); ok {
		return out, nil
	}
	return "", fmt.Errorf("starlark converter %s: convert() returned %s, want string", sc.spec.Name, result.Type())
}

// conversionInfo is the dict passed as the second convert() argument.
func (sc *StarlarkConverter) conversionInfo() *starlark.Dict {
	d := starlark.NewDict(4)
	for k, v := range map[string]starlark.Value{
		"name":   starlark.String(sc.spec.Name),
		"source": starlark.String(sc.spec.Source),
		"target": starlark.String(sc.spec.Target),
		"lossy":  starlark.Bool(sc.spec.Lossy),
	} {
		_ = d.SetKey(starlark.String(k), v)
	}
	return d
}

// programText extracts the converted program from a convert() result: a
// string, or a dict or struct with a string "program" entry.
func programText(v starlark.Value) (string, bool) {
	var field starlark.Value
	switch r := v.(type) {
	case starlark.String:
		return string(r), true
	case *starlark.Dict:
		field, _, _ = r.Get(starlark.String("program"))
	case *starlarkstruct.Struct:
		field, _ = r.Attr("program")
	}
	s, ok := field.(starlark.String)
	return string(s), ok
}
