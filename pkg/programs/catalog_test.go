package programs

import (
	"reflect"
	"testing"
)

type textProgram string

type jsonProgram struct {
	Ops []string `json:"ops"`
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	enc, dec := TextCodec[textProgram]()
	c.MustRegister(Spec{Type: "text", GoType: reflect.TypeOf(textProgram("")), Encode: enc, Decode: dec})
	enc, dec = JSONCodec[jsonProgram]()
	c.MustRegister(Spec{Type: "blob", GoType: reflect.TypeOf(&jsonProgram{}), Encode: enc, Decode: dec})
	return c
}

func TestNormalize(t *testing.T) {
	tests := map[string]ProgramType{
		"Qiskit":      Qiskit,
		" OpenQASM3 ": QASM3,
		"qasm":        QASM2,
		"tket":        Pytket,
		"quil":        PyQuil,
		"custom":      "custom",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProgramTypeValidate(t *testing.T) {
	valid := []ProgramType{"qasm2", "plugin:echo", "my_type-2"}
	for _, v := range valid {
		if err := v.Validate(); err != nil {
			t.Errorf("%q: unexpected error %v", v, err)
		}
	}
	invalid := []ProgramType{"", "Qiskit", "a b", "x/y"}
	for _, v := range invalid {
		if err := v.Validate(); err == nil {
			t.Errorf("%q: expected error", v)
		}
	}
}

func TestCatalogRegister(t *testing.T) {
	c := testCatalog(t)

	t.Run("duplicate type", func(t *testing.T) {
		err := c.Register(Spec{Type: "text", GoType: reflect.TypeOf(0)})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("duplicate Go type", func(t *testing.T) {
		err := c.Register(Spec{Type: "other", GoType: reflect.TypeOf(textProgram(""))})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing Go type", func(t *testing.T) {
		if err := c.Register(Spec{Type: "nogo"}); err == nil {
			t.Fatal("expected error")
		}
	})

	if got := c.Types(); !reflect.DeepEqual(got, []ProgramType{"blob", "text"}) {
		t.Errorf("Types() = %v", got)
	}
}

func TestCatalogTypeOf(t *testing.T) {
	c := testCatalog(t)

	got, err := c.TypeOf(textProgram("x"))
	if err != nil || got != "text" {
		t.Fatalf("TypeOf(text) = %q, %v", got, err)
	}

	for _, v := range []any{nil, "plain string", jsonProgram{}} {
		_, err := c.TypeOf(v)
		if !IsUnsupported(err) {
			t.Errorf("TypeOf(%T): expected UnsupportedProgramTypeError, got %v", v, err)
		}
	}
}

func TestCatalogResolve(t *testing.T) {
	c := testCatalog(t)

	if got, err := c.Resolve(" TEXT "); err != nil || got != "text" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
	_, err := c.Resolve("qiskit")
	if !IsUnsupported(err) {
		t.Fatalf("expected UnsupportedProgramTypeError, got %v", err)
	}
	if c := err.(*UnsupportedProgramTypeError).Code(); c == "" {
		t.Error("error has no code")
	}
}

func TestCatalogCodecs(t *testing.T) {
	c := testCatalog(t)

	data, typ, err := c.Encode(&jsonProgram{Ops: []string{"h", "cx"}})
	if err != nil {
		t.Fatal(err)
	}
	if typ != "blob" {
		t.Errorf("type = %q", typ)
	}
	back, err := c.Decode("blob", data)
	if err != nil {
		t.Fatal(err)
	}
	if ops := back.(*jsonProgram).Ops; !reflect.DeepEqual(ops, []string{"h", "cx"}) {
		t.Errorf("ops = %v", ops)
	}

	if _, err := c.Decode("blob", []byte("{")); err == nil {
		t.Error("expected decode error")
	}
	if _, err := c.Decode("missing", nil); !IsUnsupported(err) {
		t.Errorf("expected UnsupportedProgramTypeError, got %v", err)
	}

	text, _ := c.Lookup("text")
	if !text.IsText() {
		t.Error("string-backed type should be text")
	}
	blob, _ := c.Lookup("blob")
	if blob.IsText() {
		t.Error("JSON type should not be text")
	}
}

func TestCatalogCircuitBridge(t *testing.T) {
	c := testCatalog(t)

	if _, err := c.ToCircuit(textProgram("x")); err == nil {
		t.Error("expected error for type without ToCircuit")
	}
	if _, err := c.FromCircuit("text", nil); err == nil {
		t.Error("expected error for type without FromCircuit")
	}
	if _, err := c.FromCircuit("missing", nil); !IsUnsupported(err) {
		t.Errorf("expected UnsupportedProgramTypeError, got %v", err)
	}
}
