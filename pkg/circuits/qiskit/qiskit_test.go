package qiskit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

func TestBellRoundTrip(t *testing.T) {
	qc := NewQuantumCircuit(2, 2).H(0).CX(0, 1).Measure(0, 0).Measure(1, 1)
	assert.Equal(t, map[string]int{"h": 1, "cx": 1, "measure": 2}, qc.CountOps())

	c, err := qc.Circuit()
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumQubits())
	assert.Equal(t, 2, c.NumClbits())

	back, err := FromCircuit(c)
	require.NoError(t, err)
	assert.Equal(t, qc, back)
}

func TestCircuitCanonicalizesLegacyNames(t *testing.T) {
	qc := NewQuantumCircuit(2, 0)
	qc.Append("cnot", nil, []int{0, 1}, nil)
	qc.Append("u1", []circuit.Param{circuit.Num(0.5)}, []int{1}, nil)

	c, err := qc.Circuit()
	require.NoError(t, err)
	assert.Equal(t, []string{"cx", "p"}, c.GateNames())
}

func TestConditionSurvives(t *testing.T) {
	c := circuit.New(1, 1)
	c.MeasureQubit(0, 0)
	c.Ops = append(c.Ops, circuit.Operation{
		Name:      "x",
		Qubits:    []int{0},
		Condition: &circuit.Condition{Register: "c", Bit: -1, Value: 1},
	})

	qc, err := FromCircuit(c)
	require.NoError(t, err)
	require.NotNil(t, qc.Data[1].Operation.Condition)
	assert.Equal(t, 1, qc.Data[1].Operation.Condition.Value)
}

func TestInvalidCircuitRejected(t *testing.T) {
	qc := NewQuantumCircuit(1, 0).CX(0, 1)
	_, err := qc.Circuit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qiskit circuit")
}
