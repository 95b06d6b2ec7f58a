package pytket

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

func TestHalfTurns(t *testing.T) {
	tk := NewCircuit(2, 1).AddGate(OpRz, []float64{0.5}, 0).AddGate(OpCX, nil, 0, 1).Measure(1, 0)

	c, err := tk.Circuit()
	require.NoError(t, err)
	require.Len(t, c.Ops, 3)
	assert.Equal(t, "rz", c.Ops[0].Name)
	assert.InDelta(t, math.Pi/2, c.Ops[0].Params[0].Value, 1e-12)
	assert.Equal(t, []int{1}, c.Ops[2].Qubits)
	assert.Equal(t, []int{0}, c.Ops[2].Clbits)

	back, err := FromCircuit(c)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, back.Commands[0].Op.Params[0], 1e-12)
	assert.Equal(t, tk.Qubits, back.Qubits)
	assert.Equal(t, tk.Bits, back.Bits)
}

func TestMultipleRegisters(t *testing.T) {
	tk := &Circuit{
		Qubits: []UnitID{{Reg: "a", Index: 0}, {Reg: "b", Index: 0}, {Reg: "b", Index: 1}},
		Commands: []Command{
			{Op: Op{Type: OpCZ}, Args: []UnitID{{Reg: "a", Index: 0}, {Reg: "b", Index: 1}}},
		},
	}

	c, err := tk.Circuit()
	require.NoError(t, err)
	assert.Equal(t, []circuit.Register{{Name: "a", Size: 1}, {Name: "b", Size: 2}}, c.QRegs)
	assert.Equal(t, []int{0, 2}, c.Ops[0].Qubits)
}

func TestSymbolsRejected(t *testing.T) {
	c := circuit.New(1, 0).Apply("rx", []circuit.Param{circuit.Sym("theta")}, 0)
	_, err := FromCircuit(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theta")
}

func TestUnknownUnit(t *testing.T) {
	tk := NewCircuit(1, 0).AddGate(OpH, nil, 4)
	_, err := tk.Circuit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "q[4]")
}

func TestEveryCatalogGateHasOpType(t *testing.T) {
	for _, name := range circuit.Gates() {
		_, ok := toTket[name]
		assert.True(t, ok, "no op type for %s", name)
	}
}
