package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const lossyDenyRego = `# Denies every lossy hop.
# severity: error
package custom.nolossy

import rego.v1

deny contains msg if {
	some hop in input.hops
	hop.lossy
	msg := sprintf("lossy hop %d", [hop.index])
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-lossy.rego")
	writeFile(t, path, lossyDenyRego)

	loader := NewLoader(testLogger())
	policy, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "no-lossy" {
		t.Errorf("Expected name no-lossy, got %s", policy.Name)
	}
	if policy.Description != "Denies every lossy hop." {
		t.Errorf("Unexpected description %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected severity from header, got %s", policy.Severity)
	}
	if policy.Source != path {
		t.Errorf("Expected source %s, got %s", path, policy.Source)
	}
	if !policy.Enabled {
		t.Error("Loaded policies should be enabled")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	writeFile(t, path, `{
  "name": "json-policy",
  "description": "From JSON",
  "rego": "package json.policy\n\nimport rego.v1\n\ndeny contains \"x\" if { false }\n",
  "tags": ["custom"]
}`)

	policy, err := NewLoader(testLogger()).loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "json-policy" || policy.Description != "From JSON" {
		t.Errorf("Unexpected policy %+v", policy)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected default warning severity, got %s", policy.Severity)
	}
	if !policy.Enabled {
		t.Error("JSON policies default to enabled")
	}
	if policy.Source != path {
		t.Errorf("Expected source %s, got %s", path, policy.Source)
	}
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"syntax.json":  `{"name": `,
		"noname.json":  `{"rego": "package x"}`,
		"norego.json":  `{"name": "empty"}`,
		"unknown.yaml": `name: x`,
	}

	loader := NewLoader(testLogger())
	for file, content := range tests {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(dir, file)
			writeFile(t, path, content)
			if _, err := loader.loadFromFile(context.Background(), path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), lossyDenyRego)
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "nested", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "bad.json"), "{")

	policies, err := NewLoader(testLogger()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies (bad files skipped), got %d", len(policies))
	}
	names := map[string]bool{}
	for _, p := range policies {
		names[p.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Errorf("Unexpected policies %v", names)
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	_, err := NewLoader(testLogger()).LoadFromPaths(context.Background(), []string{"/nonexistent/policies"})
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
}

func TestLoadBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	writeFile(t, path, `{
  "name": "fidelity",
  "version": "1.0.0",
  "policies": [
    {"name": "one", "rego": "package one\n", "enabled": true},
    {"name": "two", "rego": "package two\n", "severity": "critical", "enabled": true}
  ]
}`)

	bundle, err := NewLoader(testLogger()).LoadBundle(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load bundle: %v", err)
	}
	if bundle.Name != "fidelity" || bundle.Version != "1.0.0" {
		t.Errorf("Unexpected bundle metadata %+v", bundle)
	}
	if len(bundle.Policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(bundle.Policies))
	}
	if bundle.Policies[0].Severity != SeverityWarning || bundle.Policies[1].Severity != SeverityCritical {
		t.Errorf("Unexpected severities %s, %s", bundle.Policies[0].Severity, bundle.Policies[1].Severity)
	}
	if bundle.Policies[1].Source != path {
		t.Errorf("Expected bundle source, got %s", bundle.Policies[1].Source)
	}
}

func TestParseHeaderDescription(t *testing.T) {
	loader := NewLoader(testLogger())

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "single line", content: "# Blocks lossy hops\npackage x", want: "Blocks lossy hops"},
		{name: "multi line", content: "# First line\n# second line\n\npackage x", want: "First line second line"},
		{name: "severity skipped", content: "# Checks\n# severity: error\npackage x", want: "Checks"},
		{name: "no comments", content: "package x\n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loader.parseHeader(tt.content).description; got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseHeaderSeverity(t *testing.T) {
	loader := NewLoader(testLogger())

	tests := []struct {
		content string
		want    Severity
	}{
		{content: "# severity: critical\npackage x", want: SeverityCritical},
		{content: "# Title\n# Severity: ERROR\npackage x", want: ""},
		{content: "# title\n# severity: INFO\npackage x", want: SeverityInfo},
		{content: "# severity: fatal\npackage x", want: ""},
		{content: "package x\n# severity: error", want: ""},
	}

	for _, tt := range tests {
		if got := loader.parseHeader(tt.content).severity; got != tt.want {
			t.Errorf("parseHeader(%q).severity = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestClearCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cached.rego")
	writeFile(t, path, "# Old\npackage cached\n")

	loader := NewLoader(testLogger())
	ctx := context.Background()
	if _, err := loader.loadFromFile(ctx, path); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	writeFile(t, path, "# New\npackage cached\n")
	cached, _ := loader.loadFromFile(ctx, path)
	if cached.Description != "Old" {
		t.Errorf("Expected cached description, got %q", cached.Description)
	}

	loader.ClearCache()
	fresh, _ := loader.loadFromFile(ctx, path)
	if fresh.Description != "New" {
		t.Errorf("Expected reloaded description, got %q", fresh.Description)
	}
}

func TestEngineLoadPolicies_Enforcing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "no-lossy.rego"), lossyDenyRego)

	eng, err := NewEngine(testLogger(), WithMode(ModeEnforcing))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	ctx := context.Background()
	if err := eng.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	path := testPath(hopSpec{source: "braket", target: "qiskit", lossy: true})
	if err := eng.PathCheck()(ctx, path); err == nil {
		t.Fatal("Expected the loaded error-severity policy to deny the path")
	}

	// Reload keeps file policies.
	if err := eng.ReloadPolicies(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, err := eng.GetPolicy("no-lossy"); err != nil {
		t.Errorf("Reload dropped file policy: %v", err)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.rego"), "package first\n")

	loader := NewLoader(testLogger())
	loader.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{dir}, func(p []Policy) error {
		reloaded <- p
		return nil
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer loader.StopWatching()

	writeFile(t, filepath.Join(dir, "second.rego"), "package second\n")

	select {
	case policies := <-reloaded:
		if len(policies) != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}
