package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// IBM returns the superconducting basis {rz, sx, x, cx}.
func IBM() Target {
	return Target{
		Name:    "ibm",
		GateSet: circuit.NewGateSet("rz", "sx", "x", "cx"),
	}
}

// Rigetti returns the basis {rx, rz, cz}.
func Rigetti() Target {
	return Target{
		Name:    "rigetti",
		GateSet: circuit.NewGateSet("rx", "rz", "cz"),
	}
}

// IonQ returns the trapped-ion basis {rx, ry, rz, rxx}.
func IonQ() Target {
	return Target{
		Name:    "ionq",
		GateSet: circuit.NewGateSet("rx", "ry", "rz", "rxx"),
	}
}

// CliffordT returns the Clifford+T basis.
func CliffordT() Target {
	return Target{
		Name:    "clifford_t",
		GateSet: circuit.NewGateSet("h", "s", "sdg", "t", "tdg", "cx", "x", "z"),
	}
}

// Universal returns the basis {u, cx}.
func Universal() Target {
	return Target{
		Name:    "universal",
		GateSet: circuit.NewGateSet("u", "cx"),
	}
}

var namedTargets = map[string]func() Target{
	"ibm":        IBM,
	"rigetti":    Rigetti,
	"ionq":       IonQ,
	"clifford_t": CliffordT,
	"universal":  Universal,
}

// TargetNames returns the names accepted by LookupTarget, sorted.
func TargetNames() []string {
	names := make([]string, 0, len(namedTargets))
	for n := range namedTargets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupTarget returns a named target.
func LookupTarget(name string) (Target, bool) {
	f, ok := namedTargets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Target{}, false
	}
	return f(), true
}

// ParseTarget resolves a target name or a comma separated gate list such as
// "h,t,tdg,cx".
func ParseTarget(spec string, maxQubits int) (Target, error) {
	if t, ok := LookupTarget(spec); ok {
		t.MaxQubits = maxQubits
		return t, nil
	}
	gates := circuit.NewGateSet(strings.Split(spec, ",")...)
	if len(gates) == 0 {
		return Target{}, fmt.Errorf("empty target %q", spec)
	}
	for _, g := range gates.Names() {
		if _, ok := circuit.Lookup(g); !ok {
			return Target{}, fmt.Errorf("unknown gate %q in target %q", g, spec)
		}
	}
	return Target{Name: "custom", GateSet: gates, MaxQubits: maxQubits}, nil
}
