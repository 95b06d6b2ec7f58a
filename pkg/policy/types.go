package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for conversions that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError blocks a conversion in enforcing mode.
	SeverityError Severity = "error"

	// SeverityCritical blocks a conversion in enforcing mode.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity denies a path in enforcing mode.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Mode controls what the engine does with blocking violations.
type Mode string

const (
	// ModeAdvisory logs violations and allows every path.
	ModeAdvisory Mode = "advisory"

	// ModeEnforcing denies paths with blocking violations.
	ModeEnforcing Mode = "enforcing"
)

// Policy is a Rego module defining a deny set.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single deny result.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Hop is the offending hop index, or -1 when the whole path is at fault.
	Hop int `json:"hop"`
}

// Result is the outcome of evaluating all enabled policies.
type Result struct {
	// Allowed is false when a blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists every deny result in policy name order.
	Violations []Violation `json:"violations,omitempty"`

	// Errors lists policies that failed to evaluate.
	Errors []string `json:"errors,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that deny the path.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Input is the document policies see as input.
type Input struct {
	// Source is the program type being converted.
	Source string `json:"source"`

	// Target is the requested program type.
	Target string `json:"target"`

	// Hops lists the resolved conversion steps.
	Hops []HopInput `json:"hops"`

	// Cost is the total path weight.
	Cost int `json:"cost"`

	// Lossy is true when any hop is lossy.
	Lossy bool `json:"lossy"`

	// Extras lists the extras the path depends on.
	Extras []string `json:"extras"`

	// Context carries request metadata.
	Context Context `json:"context"`
}

// HopInput describes one conversion step.
type HopInput struct {
	Index     int    `json:"index"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Converter string `json:"converter"`
	Lossy     bool   `json:"lossy"`
	Extra     string `json:"extra,omitempty"`
}

// Context provides request information for policy evaluation.
type Context struct {
	// Operation is "transpile" or "submit".
	Operation string `json:"operation"`

	// Device is the target device id, if any.
	Device string `json:"device,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// PolicyBundle is a JSON collection of related policies.
type PolicyBundle struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Policies    []Policy `json:"policies"`
}
