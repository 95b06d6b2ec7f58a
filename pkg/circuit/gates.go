package circuit

import (
	"math"
	"math/cmplx"
	"sort"
	"strings"
)

// Matrix is a dense complex matrix. Row and column indices use the first
// gate qubit as the most significant bit.
type Matrix [][]complex128

// GateDef describes a unitary gate in the catalog.
type GateDef struct {
	Name      string
	NumQubits int
	NumParams int
	unitary   func(params []float64) Matrix
}

// Unitary returns the gate matrix for the given parameters.
func (g GateDef) Unitary(params []float64) Matrix {
	return g.unitary(params)
}

var catalog = map[string]GateDef{}

func define(name string, qubits, params int, u func(p []float64) Matrix) {
	catalog[name] = GateDef{Name: name, NumQubits: qubits, NumParams: params, unitary: u}
}

func fixed(m Matrix) func([]float64) Matrix {
	return func([]float64) Matrix { return m }
}

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)

	matI     = Matrix{{1, 0}, {0, 1}}
	matX     = Matrix{{0, 1}, {1, 0}}
	matY     = Matrix{{0, -1i}, {1i, 0}}
	matZ     = Matrix{{1, 0}, {0, -1}}
	matH     = Matrix{{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}}
	matS     = Matrix{{1, 0}, {0, 1i}}
	matSd    = Matrix{{1, 0}, {0, -1i}}
	matT     = Matrix{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}}
	matTd    = Matrix{{1, 0}, {0, cmplx.Exp(complex(0, -math.Pi/4))}}
	matSX    = Matrix{{complex(0.5, 0.5), complex(0.5, -0.5)}, {complex(0.5, -0.5), complex(0.5, 0.5)}}
	matSXd   = Matrix{{complex(0.5, -0.5), complex(0.5, 0.5)}, {complex(0.5, 0.5), complex(0.5, -0.5)}}
	matSwap  = Matrix{{1, 0, 0, 0}, {0, 0, 1, 0}, {0, 1, 0, 0}, {0, 0, 0, 1}}
	matISwap = Matrix{{1, 0, 0, 0}, {0, 0, 1i, 0}, {0, 1i, 0, 0}, {0, 0, 0, 1}}
)

func expi(theta float64) complex128 {
	return cmplx.Exp(complex(0, theta))
}

// RX returns the x-axis rotation matrix.
func RX(theta float64) Matrix {
	c, s := complex(math.Cos(theta/2), 0), complex(0, -math.Sin(theta/2))
	return Matrix{{c, s}, {s, c}}
}

// RY returns the y-axis rotation matrix.
func RY(theta float64) Matrix {
	c, s := complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
	return Matrix{{c, -s}, {s, c}}
}

// RZ returns the z-axis rotation matrix.
func RZ(theta float64) Matrix {
	return Matrix{{expi(-theta / 2), 0}, {0, expi(theta / 2)}}
}

// Phase returns diag(1, e^{i lambda}).
func Phase(lambda float64) Matrix {
	return Matrix{{1, 0}, {0, expi(lambda)}}
}

// U3 returns the generic single-qubit rotation U(theta, phi, lambda).
func U3(theta, phi, lambda float64) Matrix {
	c, s := complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
	return Matrix{
		{c, -expi(lambda) * s},
		{expi(phi) * s, expi(phi+lambda) * c},
	}
}

// Controlled returns the matrix of u controlled on one extra leading qubit.
func Controlled(u Matrix) Matrix {
	d := len(u)
	m := identity(2 * d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			m[d+i][d+j] = u[i][j]
		}
	}
	return m
}

func twoQubitRotation(theta float64, pauli Matrix) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(0, -math.Sin(theta/2))
	pp := Kron(pauli, pauli)
	m := identity(4)
	for i := range m {
		for j := range m[i] {
			m[i][j] = m[i][j]*c + pp[i][j]*s
		}
	}
	return m
}

func init() {
	define("id", 1, 0, fixed(matI))
	define("x", 1, 0, fixed(matX))
	define("y", 1, 0, fixed(matY))
	define("z", 1, 0, fixed(matZ))
	define("h", 1, 0, fixed(matH))
	define("s", 1, 0, fixed(matS))
	define("sdg", 1, 0, fixed(matSd))
	define("t", 1, 0, fixed(matT))
	define("tdg", 1, 0, fixed(matTd))
	define("sx", 1, 0, fixed(matSX))
	define("sxdg", 1, 0, fixed(matSXd))
	define("rx", 1, 1, func(p []float64) Matrix { return RX(p[0]) })
	define("ry", 1, 1, func(p []float64) Matrix { return RY(p[0]) })
	define("rz", 1, 1, func(p []float64) Matrix { return RZ(p[0]) })
	define("p", 1, 1, func(p []float64) Matrix { return Phase(p[0]) })
	define("u", 1, 3, func(p []float64) Matrix { return U3(p[0], p[1], p[2]) })

	define("cx", 2, 0, fixed(Controlled(matX)))
	define("cy", 2, 0, fixed(Controlled(matY)))
	define("cz", 2, 0, fixed(Controlled(matZ)))
	define("ch", 2, 0, fixed(Controlled(matH)))
	define("swap", 2, 0, fixed(matSwap))
	define("iswap", 2, 0, fixed(matISwap))
	define("crx", 2, 1, func(p []float64) Matrix { return Controlled(RX(p[0])) })
	define("cry", 2, 1, func(p []float64) Matrix { return Controlled(RY(p[0])) })
	define("crz", 2, 1, func(p []float64) Matrix { return Controlled(RZ(p[0])) })
	define("cp", 2, 1, func(p []float64) Matrix { return Controlled(Phase(p[0])) })
	define("rxx", 2, 1, func(p []float64) Matrix { return twoQubitRotation(p[0], matX) })
	define("ryy", 2, 1, func(p []float64) Matrix { return twoQubitRotation(p[0], matY) })
	define("rzz", 2, 1, func(p []float64) Matrix { return twoQubitRotation(p[0], matZ) })

	define("ccx", 3, 0, fixed(Controlled(Controlled(matX))))
	define("cswap", 3, 0, fixed(Controlled(matSwap)))
}

// aliases maps legacy gate spellings to catalog names.
var aliases = map[string]string{
	"u3":      "u",
	"u1":      "p",
	"cnot":    "cx",
	"toffoli": "ccx",
	"fredkin": "cswap",
	"cu1":     "cp",
	"cphase":  "cp",
	"phase":   "p",
	"i":       "id",
}

// Canonical returns the catalog spelling of a gate name.
func Canonical(name string) string {
	n := strings.ToLower(name)
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// Lookup returns the catalog entry for a gate name.
func Lookup(name string) (GateDef, bool) {
	g, ok := catalog[Canonical(name)]
	return g, ok
}

// Gates returns all catalog gate names, sorted.
func Gates() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GateSet is a set of allowed gate names.
type GateSet map[string]struct{}

// NewGateSet builds a set from canonicalized names.
func NewGateSet(names ...string) GateSet {
	s := make(GateSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s[Canonical(n)] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the gate.
func (s GateSet) Has(name string) bool {
	_, ok := s[Canonical(name)]
	return ok
}

// HasAll reports whether the set contains every given gate.
func (s GateSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Names returns the sorted gate names.
func (s GateSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// String renders the set as a comma separated list.
func (s GateSet) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}
