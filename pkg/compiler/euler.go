package compiler

import (
	"math"
	"math/cmplx"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// angleTolerance is the threshold below which a rotation is dropped.
const angleTolerance = 1e-12

// eulerBasis is a native single-qubit rotation pair.
type eulerBasis int

const (
	basisNone eulerBasis = iota
	basisU               // u(theta, phi, lambda)
	basisZYZ             // rz, ry, rz
	basisZXZ             // rz, rx, rz
	basisZSX             // rz, sx, rz, sx, rz
)

// String implements fmt.Stringer.
func (b eulerBasis) String() string {
	switch b {
	case basisU:
		return "U"
	case basisZYZ:
		return "ZYZ"
	case basisZXZ:
		return "ZXZ"
	case basisZSX:
		return "ZSX"
	default:
		return "none"
	}
}

// synthesizer decomposes single-qubit unitaries into a target basis.
type synthesizer struct {
	basis eulerBasis

	// zGate is the z rotation used by the basis, rz or p. They differ only
	// by a global phase.
	zGate string
}

// newSynthesizer picks the richest Euler basis available in the gate set.
func newSynthesizer(gates circuit.GateSet) synthesizer {
	z := ""
	switch {
	case gates.Has("rz"):
		z = "rz"
	case gates.Has("p"):
		z = "p"
	}

	switch {
	case gates.Has("u"):
		return synthesizer{basis: basisU, zGate: z}
	case z != "" && gates.Has("ry"):
		return synthesizer{basis: basisZYZ, zGate: z}
	case z != "" && gates.Has("rx"):
		return synthesizer{basis: basisZXZ, zGate: z}
	case z != "" && gates.Has("sx"):
		return synthesizer{basis: basisZSX, zGate: z}
	default:
		return synthesizer{basis: basisNone}
	}
}

// ok reports whether the gate set supports synthesis.
func (s synthesizer) ok() bool {
	return s.basis != basisNone
}

// zyzAngles returns theta, phi and lambda with u equal, up to global phase,
// to rz(phi) ry(theta) rz(lambda).
func zyzAngles(u circuit.Matrix) (theta, phi, lambda float64) {
	det := u[0][0]*u[1][1] - u[0][1]*u[1][0]
	scale := cmplx.Sqrt(det)
	a := u[0][0] / scale
	b := u[1][0] / scale

	theta = 2 * math.Atan2(cmplx.Abs(b), cmplx.Abs(a))
	var argA, argB float64
	if cmplx.Abs(a) > angleTolerance {
		argA = cmplx.Phase(a)
	}
	if cmplx.Abs(b) > angleTolerance {
		argB = cmplx.Phase(b)
	}
	sum := -2 * argA
	diff := 2 * argB
	phi = (sum + diff) / 2
	lambda = (sum - diff) / 2
	return theta, phi, lambda
}

// normalizeAngle maps an angle into (-pi, pi].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func isZeroAngle(a float64) bool {
	return math.Abs(normalizeAngle(a)) < angleTolerance
}

// synthesize returns gates on qubit q implementing u up to global phase.
func (s synthesizer) synthesize(u circuit.Matrix, q int) []circuit.Operation {
	theta, phi, lambda := zyzAngles(u)

	var out []circuit.Operation
	rot := func(name string, angle float64) {
		out = append(out, circuit.Operation{
			Name:   name,
			Qubits: []int{q},
			Params: []circuit.Param{circuit.Num(normalizeAngle(angle))},
		})
	}
	z := func(angle float64) {
		if !isZeroAngle(angle) {
			rot(s.zGate, angle)
		}
	}

	if s.basis == basisU {
		out = append(out, circuit.Operation{
			Name:   "u",
			Qubits: []int{q},
			Params: []circuit.Param{circuit.Num(theta), circuit.Num(normalizeAngle(phi)), circuit.Num(normalizeAngle(lambda))},
		})
		return out
	}

	if isZeroAngle(theta) {
		z(phi + lambda)
		return out
	}

	switch s.basis {
	case basisZYZ:
		z(lambda)
		rot("ry", theta)
		z(phi)
	case basisZXZ:
		z(lambda - math.Pi/2)
		rot("rx", theta)
		z(phi + math.Pi/2)
	case basisZSX:
		z(lambda)
		out = append(out, circuit.Operation{Name: "sx", Qubits: []int{q}})
		z(theta + math.Pi)
		out = append(out, circuit.Operation{Name: "sx", Qubits: []int{q}})
		z(phi + math.Pi)
	}
	return out
}
