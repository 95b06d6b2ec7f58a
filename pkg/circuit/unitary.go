package circuit

import (
	"fmt"
	"math"
	"math/cmplx"
)

// MaxUnitaryQubits bounds Unitary to keep the dense matrix small.
const MaxUnitaryQubits = 10

func identity(d int) Matrix {
	m := make(Matrix, d)
	for i := range m {
		m[i] = make([]complex128, d)
		m[i][i] = 1
	}
	return m
}

// Identity returns the d x d identity matrix.
func Identity(d int) Matrix {
	return identity(d)
}

// Kron returns the Kronecker product a (x) b.
func Kron(a, b Matrix) Matrix {
	ra, rb := len(a), len(b)
	m := make(Matrix, ra*rb)
	for i := range m {
		m[i] = make([]complex128, ra*rb)
	}
	for i := 0; i < ra; i++ {
		for j := 0; j < ra; j++ {
			for k := 0; k < rb; k++ {
				for l := 0; l < rb; l++ {
					m[i*rb+k][j*rb+l] = a[i][j] * b[k][l]
				}
			}
		}
	}
	return m
}

// Mul returns the matrix product a * b.
func Mul(a, b Matrix) Matrix {
	n := len(a)
	m := make(Matrix, n)
	for i := 0; i < n; i++ {
		m[i] = make([]complex128, len(b[0]))
		for k := 0; k < len(b); k++ {
			if a[i][k] == 0 {
				continue
			}
			for j := range m[i] {
				m[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return m
}

// applyGate applies a k-qubit matrix to a state vector. Qubit 0 is the
// least significant bit of the state index.
func applyGate(state []complex128, m Matrix, qubits []int) []complex128 {
	k := len(qubits)
	out := make([]complex128, len(state))
	for i := range state {
		row := 0
		base := i
		for j, q := range qubits {
			if i>>q&1 == 1 {
				row |= 1 << (k - 1 - j)
			}
			base &^= 1 << q
		}
		var sum complex128
		for col := 0; col < 1<<k; col++ {
			if m[row][col] == 0 {
				continue
			}
			idx := base
			for j, q := range qubits {
				if col>>(k-1-j)&1 == 1 {
					idx |= 1 << q
				}
			}
			sum += m[row][col] * state[idx]
		}
		out[i] = sum
	}
	return out
}

// Unitary computes the matrix of a measurement-free circuit. Barriers are
// ignored; measurements, resets, conditions and symbols are rejected.
func Unitary(c *Circuit) (Matrix, error) {
	n := c.NumQubits()
	if n > MaxUnitaryQubits {
		return nil, fmt.Errorf("unitary of %d qubits exceeds limit of %d", n, MaxUnitaryQubits)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	type step struct {
		m      Matrix
		qubits []int
	}
	steps := make([]step, 0, len(c.Ops))
	for _, op := range c.Ops {
		if op.Name == Barrier {
			continue
		}
		if op.Condition != nil {
			return nil, fmt.Errorf("gate %s is classically controlled", op.Name)
		}
		def, ok := Lookup(op.Name)
		if !ok {
			return nil, fmt.Errorf("operation %s has no unitary", op.Name)
		}
		angles, err := op.Angles()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{m: def.Unitary(angles), qubits: op.Qubits})
	}

	d := 1 << n
	u := identity(d)
	for col := 0; col < d; col++ {
		state := make([]complex128, d)
		state[col] = 1
		for _, s := range steps {
			state = applyGate(state, s.m, s.qubits)
		}
		for row := 0; row < d; row++ {
			u[row][col] = state[row]
		}
	}
	return u, nil
}

// EquivalentUpToPhase reports whether a = e^{i phi} b for some phi.
func EquivalentUpToPhase(a, b Matrix, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	var phase complex128
	found := false
	for i := range a {
		for j := range a[i] {
			if cmplx.Abs(b[i][j]) > tol {
				phase = a[i][j] / b[i][j]
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found || math.Abs(cmplx.Abs(phase)-1) > tol {
		return false
	}
	for i := range a {
		for j := range a[i] {
			if cmplx.Abs(a[i][j]-phase*b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}
