package plugins

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

type (
	alphaText string
	betaText  string
	opaque    struct{ N int }
)

const (
	alpha programs.ProgramType = "alpha"
	beta  programs.ProgramType = "beta"
	blob  programs.ProgramType = "blob"
)

func testCatalog(t *testing.T) *programs.Catalog {
	t.Helper()
	c := programs.NewCatalog()
	alphaEnc, alphaDec := programs.TextCodec[alphaText]()
	betaEnc, betaDec := programs.TextCodec[betaText]()
	blobEnc, blobDec := programs.JSONCodec[opaque]()
	c.MustRegister(programs.Spec{Type: alpha, GoType: reflect.TypeOf(alphaText("")), Encode: alphaEnc, Decode: alphaDec})
	c.MustRegister(programs.Spec{Type: beta, GoType: reflect.TypeOf(betaText("")), Encode: betaEnc, Decode: betaDec})
	c.MustRegister(programs.Spec{Type: blob, GoType: reflect.TypeOf(&opaque{}), Encode: blobEnc, Decode: blobDec})
	return c
}

func testManager(t *testing.T) (*Manager, *transpiler.Registry, *programs.Catalog) {
	t.Helper()
	catalog := testCatalog(t)
	registry := transpiler.NewRegistry()
	return NewManager(registry, catalog, HostConfig{}, zerolog.Nop()), registry, catalog
}

// Module layout produced by testModule. Function indices follow the order
// of the code section.
const (
	funcMalloc = iota
	funcFree
	funcIdentity
	funcFail
	funcTrap
	funcSpin
)

// failResponse is stored by a data segment at offset 16.
const failResponse = `{"error":"boom"}`

// testModule assembles a small WASM module exporting memory, a bump
// allocator, and conversion exports:
//
//	identity  returns its input, which is a valid response echoing the program
//	fail      returns failResponse
//	trap      executes unreachable
//	spin      loops forever
func testModule() []byte {
	types := vec(
		[]byte{0x60, 0x01, 0x7f, 0x01, 0x7f},       // (i32) -> i32
		[]byte{0x60, 0x01, 0x7f, 0x00},             // (i32) -> ()
		[]byte{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e}, // (i32, i32) -> i64
	)
	functions := vec([]byte{0}, []byte{1}, []byte{2}, []byte{2}, []byte{2}, []byte{2})
	memory := vec([]byte{0x00, 0x01})
	// mutable i32 heap pointer starting at 1024
	globals := vec([]byte{0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b})
	exports := vec(
		export("memory", 0x02, 0),
		export("malloc", 0x00, funcMalloc),
		export("free", 0x00, funcFree),
		export("identity", 0x00, funcIdentity),
		export("fail", 0x00, funcFail),
		export("trap", 0x00, funcTrap),
		export("spin", 0x00, funcSpin),
	)
	code := vec(
		body(0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b),
		body(0x0b),
		body(0x20, 0x00, 0xad, 0x42, 0x20, 0x86, 0x20, 0x01, 0xad, 0x84, 0x0b),
		body(0x42, 0x10, 0x42, 0x20, 0x86, 0x42, byte(len(failResponse)), 0x84, 0x0b),
		body(0x00, 0x0b),
		body(0x03, 0x40, 0x0c, 0x00, 0x0b, 0x00, 0x0b),
	)
	data := vec(append([]byte{0x00, 0x41, 0x10, 0x0b}, name(failResponse)...))

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	out = append(out, section(3, functions)...)
	out = append(out, section(5, memory)...)
	out = append(out, section(6, globals)...)
	out = append(out, section(7, exports)...)
	out = append(out, section(10, code)...)
	out = append(out, section(11, data)...)
	return out
}

func uleb(n uint32) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func section(id byte, payload []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func export(n string, kind byte, index uint32) []byte {
	out := append(name(n), kind)
	return append(out, uleb(index)...)
}

// body encodes a function body with no locals.
func body(code ...byte) []byte {
	b := append([]byte{0x00}, code...)
	return append(uleb(uint32(len(b))), b...)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writePlugin writes <dir>/<pluginName>/manifest.yaml and module.wasm.
func writePlugin(t *testing.T, dir, pluginName, manifest string) string {
	t.Helper()
	pluginDir := filepath.Join(dir, pluginName)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "module.wasm"), testModule(), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(pluginDir, ManifestFile)
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func manifestYAML(pluginName, export, checksum string) string {
	s := `metadata:
  name: ` + pluginName + `
  version: 1.0.0
  author: qBraid
  license: Apache-2.0
entrypoint: module.wasm
conversions:
  - source: alpha
    target: beta
    export: ` + export + `
`
	if checksum != "" {
		s += "checksum: " + checksum + "\n"
	}
	return s
}
