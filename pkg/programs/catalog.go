package programs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// Spec describes one program representation.
type Spec struct {
	// Type is the program type alias.
	Type ProgramType

	// GoType is the concrete Go type of program values.
	GoType reflect.Type

	// Extra names the optional capability that provides this type. Empty
	// means the type is always available.
	Extra string

	// Description is a short human-readable summary.
	Description string

	// Text marks types whose serialized form is program source rather than
	// JSON, e.g. Quil held in a structured Go value.
	Text bool

	// Encode serializes a program value.
	Encode func(program any) ([]byte, error)

	// Decode parses a serialized program.
	Decode func(data []byte) (any, error)

	// ToCircuit lowers a program to the shared circuit model.
	ToCircuit func(program any) (*circuit.Circuit, error)

	// FromCircuit builds a program from the shared circuit model.
	FromCircuit func(c *circuit.Circuit) (any, error)
}

// IsText reports whether the serialized form is program text rather than JSON.
func (s Spec) IsText() bool {
	return s.Text || (s.GoType != nil && s.GoType.Kind() == reflect.String)
}

// Catalog is the registered set of program types.
type Catalog struct {
	// mu protects the catalog state.
	mu sync.RWMutex

	// specs maps program type to its spec.
	specs map[ProgramType]Spec

	// byGoType maps a Go type to its program type.
	byGoType map[reflect.Type]ProgramType
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		specs:    make(map[ProgramType]Spec),
		byGoType: make(map[reflect.Type]ProgramType),
	}
}

// Register adds a program type. A type alias or Go type may only be
// registered once.
func (c *Catalog) Register(spec Spec) error {
	if err := spec.Type.Validate(); err != nil {
		return err
	}
	if spec.GoType == nil {
		return fmt.Errorf("program type %s: Go type is required", spec.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.specs[spec.Type]; exists {
		return fmt.Errorf("program type %s already registered", spec.Type)
	}
	if other, exists := c.byGoType[spec.GoType]; exists {
		return fmt.Errorf("Go type %s already registered as %s", spec.GoType, other)
	}

	c.specs[spec.Type] = spec
	c.byGoType[spec.GoType] = spec.Type
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Catalog) MustRegister(spec Spec) {
	if err := c.Register(spec); err != nil {
		panic(err)
	}
}

// TypeOf infers the program type of a value from its Go type.
func (c *Catalog) TypeOf(program any) (ProgramType, error) {
	if program == nil {
		return "", &UnsupportedProgramTypeError{GoType: "<nil>", Known: c.Types()}
	}
	rt := reflect.TypeOf(program)

	c.mu.RLock()
	t, ok := c.byGoType[rt]
	c.mu.RUnlock()

	if !ok {
		return "", &UnsupportedProgramTypeError{GoType: rt.String(), Known: c.Types()}
	}
	return t, nil
}

// Lookup returns the spec for a program type.
func (c *Catalog) Lookup(t ProgramType) (Spec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[t]
	return s, ok
}

// Resolve normalizes a type name and checks it is registered.
func (c *Catalog) Resolve(name string) (ProgramType, error) {
	t := Normalize(name)
	if _, ok := c.Lookup(t); !ok {
		return "", &UnsupportedProgramTypeError{Name: name, Known: c.Types()}
	}
	return t, nil
}

// Types returns the registered program types, sorted.
func (c *Catalog) Types() []ProgramType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ProgramType, 0, len(c.specs))
	for t := range c.specs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Specs returns all registered specs ordered by type.
func (c *Catalog) Specs() []Spec {
	types := c.Types()
	out := make([]Spec, 0, len(types))
	for _, t := range types {
		s, _ := c.Lookup(t)
		out = append(out, s)
	}
	return out
}

// Encode serializes a program using its registered codec.
func (c *Catalog) Encode(program any) ([]byte, ProgramType, error) {
	t, err := c.TypeOf(program)
	if err != nil {
		return nil, "", err
	}
	spec, _ := c.Lookup(t)
	if spec.Encode == nil {
		return nil, t, fmt.Errorf("program type %s has no encoder", t)
	}
	data, err := spec.Encode(program)
	if err != nil {
		return nil, t, fmt.Errorf("encode %s: %w", t, err)
	}
	return data, t, nil
}

// Decode parses serialized data as the given program type.
func (c *Catalog) Decode(t ProgramType, data []byte) (any, error) {
	spec, ok := c.Lookup(t)
	if !ok {
		return nil, &UnsupportedProgramTypeError{Name: string(t), Known: c.Types()}
	}
	if spec.Decode == nil {
		return nil, fmt.Errorf("program type %s has no decoder", t)
	}
	program, err := spec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return program, nil
}

// ToCircuit lowers any registered program to the shared circuit model.
func (c *Catalog) ToCircuit(program any) (*circuit.Circuit, error) {
	t, err := c.TypeOf(program)
	if err != nil {
		return nil, err
	}
	spec, _ := c.Lookup(t)
	if spec.ToCircuit == nil {
		return nil, fmt.Errorf("program type %s cannot be lowered to a circuit", t)
	}
	return spec.ToCircuit(program)
}

// FromCircuit builds a program of type t from the shared circuit model.
func (c *Catalog) FromCircuit(t ProgramType, circ *circuit.Circuit) (any, error) {
	spec, ok := c.Lookup(t)
	if !ok {
		return nil, &UnsupportedProgramTypeError{Name: string(t), Known: c.Types()}
	}
	if spec.FromCircuit == nil {
		return nil, fmt.Errorf("program type %s cannot be built from a circuit", t)
	}
	return spec.FromCircuit(circ)
}

// TextCodec returns an Encode/Decode pair for program types backed by a
// string type, such as OpenQASM source.
func TextCodec[T ~string]() (func(any) ([]byte, error), func([]byte) (any, error)) {
	enc := func(program any) ([]byte, error) {
		v, ok := program.(T)
		if !ok {
			return nil, fmt.Errorf("expected %T, got %T", v, program)
		}
		return []byte(v), nil
	}
	dec := func(data []byte) (any, error) {
		return T(data), nil
	}
	return enc, dec
}

// JSONCodec returns an Encode/Decode pair for program types held as *T.
func JSONCodec[T any]() (func(any) ([]byte, error), func([]byte) (any, error)) {
	enc := func(program any) ([]byte, error) {
		v, ok := program.(*T)
		if !ok {
			return nil, fmt.Errorf("expected %T, got %T", v, program)
		}
		return json.MarshalIndent(v, "", "  ")
	}
	dec := func(data []byte) (any, error) {
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return enc, dec
}
