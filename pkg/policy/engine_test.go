package policy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

type hopSpec struct {
	source, target string
	lossy          bool
	extra          string
}

// testPath builds a path from hop descriptions. Weights follow the default
// lossy penalty.
func testPath(hops ...hopSpec) transpiler.Path {
	p := transpiler.Path{
		Source: programs.ProgramType(hops[0].source),
		Target: programs.ProgramType(hops[len(hops)-1].target),
	}
	for _, h := range hops {
		weight := 1
		if h.lossy {
			weight += transpiler.DefaultLossyPenalty
		}
		p.Edges = append(p.Edges, transpiler.Edge{
			Source: programs.ProgramType(h.source),
			Target: programs.ProgramType(h.target),
			Weight: weight,
			Converter: transpiler.Converter{
				Source:        programs.ProgramType(h.source),
				Target:        programs.ProgramType(h.target),
				Lossy:         h.lossy,
				RequiresExtra: h.extra,
			},
		})
	}
	return p
}

func TestNewEngine(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if eng.Mode() != ModeAdvisory {
		t.Errorf("Expected advisory mode by default, got %s", eng.Mode())
	}

	policies := eng.ListPolicies()
	expected := []string{PolicyLossyConversion, PolicyMaxPathLength, PolicyPluginHop}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("Policy %d: expected %s, got %s", i, name, policies[i].Name)
		}
	}
}

func TestNewEngine_InvalidMode(t *testing.T) {
	if _, err := NewEngine(testLogger(), WithMode("strict")); err == nil {
		t.Fatal("Expected error for unknown mode")
	}
}

func TestNewInput(t *testing.T) {
	p := testPath(
		hopSpec{source: "braket", target: "qiskit", lossy: true},
		hopSpec{source: "qiskit", target: "qasm2"},
	)

	in := NewInput(p, "transpile")
	if in.Source != "braket" || in.Target != "qasm2" {
		t.Errorf("Unexpected endpoints %s -> %s", in.Source, in.Target)
	}
	if in.Cost != 12 {
		t.Errorf("Expected cost 12, got %d", in.Cost)
	}
	if !in.Lossy {
		t.Error("Expected lossy path")
	}
	if in.Extras == nil || len(in.Extras) != 0 {
		t.Errorf("Expected empty non-nil extras, got %v", in.Extras)
	}
	if len(in.Hops) != 2 || in.Hops[1].Index != 1 || in.Hops[1].Converter != "qiskit_to_qasm2" {
		t.Errorf("Unexpected hops: %+v", in.Hops)
	}
	if in.Context.Operation != "transpile" {
		t.Errorf("Expected operation transpile, got %s", in.Context.Operation)
	}
}

func TestEvaluatePath_BuiltinPolicies(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name       string
		path       transpiler.Path
		violations []string
		hops       []int
	}{
		{
			name:       "lossless single hop",
			path:       testPath(hopSpec{source: "qiskit", target: "qasm2"}),
			violations: nil,
		},
		{
			name: "lossy hop",
			path: testPath(
				hopSpec{source: "braket", target: "qiskit", lossy: true},
				hopSpec{source: "qiskit", target: "qasm2"},
			),
			violations: []string{PolicyLossyConversion},
			hops:       []int{0},
		},
		{
			name: "plugin hop",
			path: testPath(
				hopSpec{source: "qasm2", target: "quipper", extra: "plugin:quipper"},
			),
			violations: []string{PolicyPluginHop},
			hops:       []int{0},
		},
		{
			name: "long path",
			path: testPath(
				hopSpec{source: "a", target: "b"},
				hopSpec{source: "b", target: "c"},
				hopSpec{source: "c", target: "d"},
				hopSpec{source: "d", target: "e"},
				hopSpec{source: "e", target: "f"},
			),
			violations: []string{PolicyMaxPathLength},
			hops:       []int{-1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluatePath(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if !result.Allowed {
				t.Error("Built-in policies should never block a path")
			}
			if len(result.Errors) != 0 {
				t.Errorf("Unexpected evaluation errors: %v", result.Errors)
			}
			if len(result.EvaluatedPolicies) != 3 {
				t.Errorf("Expected 3 evaluated policies, got %v", result.EvaluatedPolicies)
			}
			if len(result.Violations) != len(tt.violations) {
				t.Fatalf("Expected %d violations, got %+v", len(tt.violations), result.Violations)
			}
			for i, v := range result.Violations {
				if v.Policy != tt.violations[i] {
					t.Errorf("Violation %d: expected policy %s, got %s", i, tt.violations[i], v.Policy)
				}
				if v.Hop != tt.hops[i] {
					t.Errorf("Violation %d: expected hop %d, got %d", i, tt.hops[i], v.Hop)
				}
				if v.Message == "" {
					t.Errorf("Violation %d has no message", i)
				}
			}
		})
	}
}

func TestEvaluatePath_LossyMessage(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	result, err := eng.EvaluatePath(context.Background(), testPath(
		hopSpec{source: "braket", target: "qiskit", lossy: true},
	))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(result.Violations))
	}
	v := result.Violations[0]
	if v.Message != "hop 0 (braket -> qiskit) may drop information" {
		t.Errorf("Unexpected message %q", v.Message)
	}
	if v.Severity != SeverityWarning {
		t.Errorf("Expected warning severity, got %s", v.Severity)
	}
}

const denyBraketPolicy = `package test.nobraket

import rego.v1

deny contains violation if {
	some hop in input.hops
	hop.source == "braket"
	violation := {"message": "braket programs may not be converted", "severity": "error", "hop": hop.index}
}
`

func TestPathCheck_Modes(t *testing.T) {
	path := testPath(hopSpec{source: "braket", target: "qiskit", lossy: true})

	tests := []struct {
		name      string
		mode      Mode
		expectErr bool
	}{
		{name: "advisory allows", mode: ModeAdvisory, expectErr: false},
		{name: "enforcing denies", mode: ModeEnforcing, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := NewEngine(testLogger(), WithMode(tt.mode))
			if err != nil {
				t.Fatalf("Failed to create engine: %v", err)
			}
			if err := eng.AddPolicy(context.Background(), Policy{
				Name:    "no-braket",
				Rego:    denyBraketPolicy,
				Enabled: true,
			}); err != nil {
				t.Fatalf("Failed to add policy: %v", err)
			}

			err = eng.PathCheck()(context.Background(), path)
			if !tt.expectErr {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}

			var policyErr *transpiler.ConversionPolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("Expected ConversionPolicyError, got %v", err)
			}
			if len(policyErr.Violations) != 1 {
				t.Fatalf("Expected only the blocking violation, got %v", policyErr.Violations)
			}
			if !strings.HasPrefix(policyErr.Violations[0], "no-braket: ") {
				t.Errorf("Unexpected violation text %q", policyErr.Violations[0])
			}
			if !transpiler.IsPolicyDenied(err) {
				t.Error("IsPolicyDenied should match")
			}
		})
	}
}

func TestPathCheck_WarningsDoNotBlock(t *testing.T) {
	eng, err := NewEngine(testLogger(), WithMode(ModeEnforcing))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	path := testPath(hopSpec{source: "braket", target: "qiskit", lossy: true})
	if err := eng.PathCheck()(context.Background(), path); err != nil {
		t.Fatalf("Warnings should not block in enforcing mode: %v", err)
	}
}

func TestPathCheck_PublishesViolations(t *testing.T) {
	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true, BufferSize: 16})
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	received := make(chan telemetry.Event, 4)
	events.Subscribe(func(e telemetry.Event) {
		received <- e
	}, telemetry.FilterByType(telemetry.EventTypePolicyViolation))

	eng, err := NewEngine(testLogger(), WithEvents(events))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	path := testPath(hopSpec{source: "braket", target: "qiskit", lossy: true})
	if err := eng.PathCheck()(context.Background(), path); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := events.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case e := <-received:
		if e.Data["policy"] != PolicyLossyConversion {
			t.Errorf("Expected event for %s, got %v", PolicyLossyConversion, e.Data["policy"])
		}
		if e.Data["path"] != "braket -> qiskit" {
			t.Errorf("Unexpected path %v", e.Data["path"])
		}
	default:
		t.Fatal("No policy violation event delivered")
	}
}

func TestEvaluate_StringViolations(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	err = eng.AddPolicy(context.Background(), Policy{
		Name:     "no-pyquil-target",
		Severity: SeverityCritical,
		Enabled:  true,
		Rego: `package test.target

import rego.v1

deny contains msg if {
	input.target == "pyquil"
	msg := "pyquil output is not allowed"
}
`,
	})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	result, err := eng.Evaluate(context.Background(), Input{Source: "qiskit", Target: "pyquil", Hops: []HopInput{}, Extras: []string{}})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if result.Allowed {
		t.Error("Critical violation should deny the path")
	}
	blocking := result.Blocking()
	if len(blocking) != 1 {
		t.Fatalf("Expected 1 blocking violation, got %d", len(blocking))
	}
	if blocking[0].Severity != SeverityCritical || blocking[0].Hop != -1 {
		t.Errorf("Unexpected violation %+v", blocking[0])
	}
}

func TestAddPolicy_InvalidRego(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	err = eng.AddPolicy(context.Background(), Policy{
		Name: "broken",
		Rego: "package broken\n\ndeny[msg] {",
	})
	if err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("broken"); err == nil {
		t.Error("Broken policy should not be stored")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	ctx := context.Background()
	path := testPath(hopSpec{source: "braket", target: "qiskit", lossy: true})

	if err := eng.DisablePolicy(PolicyLossyConversion); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}
	result, err := eng.EvaluatePath(ctx, path)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Disabled policy still reported %+v", result.Violations)
	}
	for _, name := range result.EvaluatedPolicies {
		if name == PolicyLossyConversion {
			t.Error("Disabled policy was evaluated")
		}
	}

	if err := eng.EnablePolicy(PolicyLossyConversion); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}
	result, err = eng.EvaluatePath(ctx, path)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(result.Violations) != 1 {
		t.Errorf("Expected 1 violation after re-enabling, got %d", len(result.Violations))
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestGetPolicy_ReturnsCopy(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	p, err := eng.GetPolicy(PolicyMaxPathLength)
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	p.Enabled = false

	again, _ := eng.GetPolicy(PolicyMaxPathLength)
	if !again.Enabled {
		t.Error("Mutating the returned policy changed the engine")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	ctx := context.Background()

	if err := eng.DisablePolicy(PolicyPluginHop); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}
	if err := eng.ReloadPolicies(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	p, err := eng.GetPolicy(PolicyPluginHop)
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if !p.Enabled {
		t.Error("Reload should restore built-in policy state")
	}
}

func TestString(t *testing.T) {
	eng, err := NewEngine(testLogger(), WithMode(ModeEnforcing))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	want := "policy engine (enforcing): lossy-conversion, max-path-length, plugin-hop"
	if got := eng.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
