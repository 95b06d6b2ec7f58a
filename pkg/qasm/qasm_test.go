package qasm

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

const bell2 = `OPENQASM 2.0;
include "qelib1.inc";
// Bell pair
qreg q[2];
creg c[2];
h q[0];
cx q[0],q[1];
measure q -> c;
`

func TestParseQASM2Bell(t *testing.T) {
	c, err := ParseQASM2(bell2)
	require.NoError(t, err)

	assert.Equal(t, 2, c.NumQubits())
	assert.Equal(t, 2, c.NumClbits())
	require.Len(t, c.Ops, 4)
	assert.Equal(t, "h", c.Ops[0].Name)
	assert.Equal(t, []int{0}, c.Ops[0].Qubits)
	assert.Equal(t, "cx", c.Ops[1].Name)
	assert.Equal(t, []int{0, 1}, c.Ops[1].Qubits)
	assert.Equal(t, circuit.Measure, c.Ops[2].Name)
	assert.Equal(t, []int{1}, c.Ops[3].Clbits)
}

func TestDetectVersion(t *testing.T) {
	v, err := DetectVersion(bell2)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = DetectVersion("OPENQASM 3;\nqubit q;")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = DetectVersion("qreg q[1];")
	require.Error(t, err)

	_, err = ParseQASM3(QASM3(bell2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected OpenQASM 3")
}

func TestParseQASM3(t *testing.T) {
	src := `OPENQASM 3.0;
include "stdgates.inc";
input float[64] theta;
qubit[2] q;
bit[2] c;
rz(theta) q[0];
rx(-pi/4) q[1];
U(pi/2, 0, pi) q[1];
c[0] = measure q[0];
if (c[0] == 1) { x q[1]; }
c[1] = measure q[1];
`
	c, err := ParseQASM3(QASM3(src))
	require.NoError(t, err)
	require.Len(t, c.Ops, 6)

	assert.True(t, c.Ops[0].Params[0].IsSymbolic())
	assert.Equal(t, "theta", c.Ops[0].Params[0].Symbol)
	assert.InDelta(t, -math.Pi/4, c.Ops[1].Params[0].Value, 1e-12)
	assert.Equal(t, "u", c.Ops[2].Name)

	cond := c.Ops[4].Condition
	require.NotNil(t, cond)
	assert.Equal(t, circuit.Condition{Register: "c", Bit: 0, Value: 1}, *cond)
}

func TestParseBroadcastAndRegisters(t *testing.T) {
	src := `OPENQASM 2.0;
include "qelib1.inc";
qreg a[2];
qreg b[2];
creg m[2];
h a;
cx a,b;
measure b -> m;
`
	c, err := ParseQASM2(QASM2(src))
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumQubits())

	counts := c.GateCounts()
	assert.Equal(t, 2, counts["h"])
	assert.Equal(t, 2, counts["cx"])
	assert.Equal(t, []int{1, 3}, c.Ops[3].Qubits)
}

func TestParseUserGateDefinition(t *testing.T) {
	src := `OPENQASM 2.0;
include "qelib1.inc";
gate bell(theta) x, y { h x; cx x,y; rz(theta/2) y; }
qreg q[2];
bell(pi) q[0], q[1];
`
	c, err := ParseQASM2(QASM2(src))
	require.NoError(t, err)
	require.Len(t, c.Ops, 3)
	assert.Equal(t, "rz", c.Ops[2].Name)
	assert.InDelta(t, math.Pi/2, c.Ops[2].Params[0].Value, 1e-12)
	assert.Equal(t, []int{1}, c.Ops[2].Qubits)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown gate", "OPENQASM 2.0;\nqreg q[1];\nfoo q[0];", "unknown gate"},
		{"out of range", "OPENQASM 2.0;\nqreg q[1];\nh q[3];", "out of range"},
		{"loops", "OPENQASM 3;\nqubit q;\nfor int i in [0:2] { h q; }", "not supported"},
		{"opaque", "OPENQASM 2.0;\nopaque magic a;", "opaque"},
		{"modifier", "OPENQASM 3;\nqubit[2] q;\nctrl @ x q[0], q[1];", "modifiers"},
		{"bad include", "OPENQASM 2.0;\ninclude \"other.inc\";", "not supported"},
		{"register size overflows int", "OPENQASM 2.0;\nqreg q[99999999999999999999];\nh q;", "wire limit"},
		{"register too wide", "OPENQASM 2.0;\nqreg q[2000000000];\nh q;", "wire limit"},
		{"registers too wide together", "OPENQASM 2.0;\nqreg a[40000];\nqreg b[40000];", "wire limit"},
		{"classical register too wide", "OPENQASM 2.0;\nqreg q[1];\ncreg c[99999999999999999999];", "wire limit"},
		{"qubit array too wide", "OPENQASM 3;\nqubit[70000] q;", "wire limit"},
		{"index overflows int", "OPENQASM 2.0;\nqreg q[1];\nh q[99999999999999999999];", "out of range"},
		{"condition bit overflows int", "OPENQASM 3;\nqubit q;\nbit[1] c;\nif (c[99999999999999999999]) { x q; }", "out of range"},
		{"version overflows int", "OPENQASM 99999999999999999999;\nqreg q[1];", "OpenQASM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEmitQASM2(t *testing.T) {
	c := circuit.New(2, 2)
	c.Gate("h", 0).Gate("cx", 0, 1).Rotation("p", math.Pi/4, 1).MeasureQubit(0, 0)
	c.Ops = append(c.Ops, circuit.Operation{
		Name: "x", Qubits: []int{1},
		Condition: &circuit.Condition{Register: "c", Bit: -1, Value: 1},
	})

	out, err := EmitQASM2(c)
	require.NoError(t, err)

	want := `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
h q[0];
cx q[0],q[1];
u1(pi/4) q[1];
measure q[0] -> c[0];
if(c==1) x q[1];
`
	assert.Equal(t, want, string(out))
}

func TestEmitDefinesMissingGates(t *testing.T) {
	c := circuit.New(2, 0)
	c.Rotation("rxx", 0.5, 0, 1).Gate("swap", 0, 1)

	out, err := EmitQASM2(c)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "gate rzz(theta) a,b {")
	assert.Contains(t, text, "gate rxx(theta) a,b {")
	assert.Contains(t, text, "gate swap a,b {")
	assert.Less(t, strings.Index(text, "gate rzz"), strings.Index(text, "gate rxx"))

	back, err := ParseQASM2(out)
	require.NoError(t, err)
	require.Len(t, back.Ops, 2)
	assert.Equal(t, "rxx", back.Ops[0].Name)
	assert.InDelta(t, 0.5, back.Ops[0].Params[0].Value, 1e-12)
	assert.Equal(t, "swap", back.Ops[1].Name)
}

func TestEmitQASM2Limits(t *testing.T) {
	sym := circuit.New(1, 0)
	sym.Apply("rz", []circuit.Param{circuit.Sym("theta")}, 0)
	_, err := EmitQASM2(sym)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound parameter")

	bit := circuit.New(1, 2)
	bit.Ops = append(bit.Ops, circuit.Operation{
		Name: "x", Qubits: []int{0},
		Condition: &circuit.Condition{Register: "c", Bit: 1, Value: 1},
	})
	_, err = EmitQASM2(bit)
	require.Error(t, err)

	out, err := EmitQASM3(bit)
	require.NoError(t, err)
	assert.Contains(t, string(out), "if (c[1] == 1) x q[0];")
}

func TestRoundTripQASM3(t *testing.T) {
	c := circuit.New(3, 3)
	c.Gate("h", 0).Gate("ccx", 0, 1, 2).Apply("u", []circuit.Param{circuit.Num(0.1), circuit.Num(0.2), circuit.Num(0.3)}, 2)
	c.Apply("ry", []circuit.Param{circuit.Sym("phi")}, 1).Gate("sxdg", 0).BarrierOn().MeasureQubit(2, 2)

	out, err := EmitQASM3(c)
	require.NoError(t, err)
	back, err := ParseQASM3(out)
	require.NoError(t, err)

	require.Len(t, back.Ops, len(c.Ops))
	for i := range c.Ops {
		assert.Equal(t, c.Ops[i].Name, back.Ops[i].Name, "op %d", i)
		assert.Equal(t, c.Ops[i].Qubits, back.Ops[i].Qubits, "op %d", i)
		require.Len(t, back.Ops[i].Params, len(c.Ops[i].Params))
		for j, p := range c.Ops[i].Params {
			if p.IsSymbolic() {
				assert.Equal(t, p.Symbol, back.Ops[i].Params[j].Symbol)
				continue
			}
			assert.InDelta(t, p.Value, back.Ops[i].Params[j].Value, 1e-12)
		}
	}
}

func TestEvalExpr(t *testing.T) {
	tests := map[string]float64{
		"pi":          math.Pi,
		"-pi/4":       -math.Pi / 4,
		"2*pi/3":      2 * math.Pi / 3,
		"sin(pi/2)":   1,
		"(1+2)*3":     9,
		"2^3":         8,
		"1.5e-1":      0.15,
		"-(pi - 1)/2": -(math.Pi - 1) / 2,
	}
	for src, want := range tests {
		got, err := evalExpr(src, nil)
		require.NoError(t, err, src)
		assert.InDelta(t, want, got, 1e-12, src)
	}

	_, err := evalExpr("theta/2", &scope{symbols: map[string]circuit.Param{"theta": circuit.Sym("theta")}})
	require.Error(t, err)
	_, err = evalExpr("1/0", nil)
	require.Error(t, err)
}
