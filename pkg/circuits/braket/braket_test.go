package braket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

func TestBellToCircuit(t *testing.T) {
	bc := (&Circuit{}).H(0).CNot(0, 1)

	c, err := bc.Circuit()
	require.NoError(t, err)
	require.Len(t, c.Ops, 2)
	assert.Equal(t, "h", c.Ops[0].Name)
	assert.Equal(t, []int{0}, c.Ops[0].Qubits)
	assert.Equal(t, "cx", c.Ops[1].Name)
	assert.Equal(t, []int{0, 1}, c.Ops[1].Qubits)
	assert.Equal(t, 0, c.NumClbits())
}

func TestSparseQubits(t *testing.T) {
	bc := (&Circuit{}).H(0).CNot(0, 3).Measure(3, 0)
	assert.Equal(t, []int{0, 3}, bc.Qubits())
	assert.Equal(t, 2, bc.QubitCount())

	c, err := bc.Circuit()
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumQubits())
	assert.Equal(t, 2, c.NumClbits())

	compact := bc.Compact()
	assert.Equal(t, []int{0, 1}, compact.Qubits())
	assert.Equal(t, []int{0, 1}, compact.Instructions[1].Target)
	assert.Equal(t, []int{0, 3}, bc.Instructions[1].Target, "Compact must not modify the receiver")
}

func TestFromCircuitLowersMissingGates(t *testing.T) {
	c := circuit.New(2, 0)
	c.Gate("ch", 0, 1).Rotation("crz", 0.4, 1, 0)

	bc, err := FromCircuit(c)
	require.NoError(t, err)
	for _, in := range bc.Instructions {
		_, ok := fromBraket[in.Operator.Name]
		assert.True(t, ok, "unexpected operator %s", in.Operator.Name)
	}

	back, err := bc.Circuit()
	require.NoError(t, err)
	want, err := circuit.Unitary(c)
	require.NoError(t, err)
	got, err := circuit.Unitary(back)
	require.NoError(t, err)
	assert.True(t, circuit.EquivalentUpToPhase(want, got, 1e-9))
}

func TestFromCircuitRejectsClassicalControl(t *testing.T) {
	mid := circuit.New(1, 1).MeasureQubit(0, 0).Gate("x", 0)
	_, err := FromCircuit(mid)
	require.Error(t, err)

	reset := circuit.New(1, 0)
	reset.Ops = append(reset.Ops, circuit.Operation{Name: circuit.Reset, Qubits: []int{0}})
	_, err = FromCircuit(reset)
	require.Error(t, err)
}

func TestUnknownOperator(t *testing.T) {
	bc := (&Circuit{}).Add("GPi", []circuit.Param{circuit.Num(0.1)}, 0)
	_, err := bc.Circuit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPi")
}
