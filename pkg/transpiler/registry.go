package transpiler

import (
	"fmt"
	"sync"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
	"github.com/qbraid/qbraid-go/pkg/programs"
)

type edgeKey struct {
	source programs.ProgramType
	target programs.ProgramType
}

// Registry holds every known converter keyed by (source, target).
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// converters maps a type pair to its converter.
	converters map[edgeKey]Converter

	// order records registration order for deterministic iteration.
	order []edgeKey

	// version is incremented on every mutation.
	version uint64
}

// NewRegistry creates an empty converter registry.
func NewRegistry() *Registry {
	return &Registry{
		converters: make(map[edgeKey]Converter),
	}
}

// RegisterOption configures a Register call.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	overwrite bool
}

// WithOverwrite replaces an existing converter for the same pair instead of
// failing.
func WithOverwrite() RegisterOption {
	return func(o *registerOptions) {
		o.overwrite = true
	}
}

// Register adds a converter. It returns a DuplicateConversionError when the
// pair is already registered, unless WithOverwrite is given.
func (r *Registry) Register(c Converter, opts ...RegisterOption) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := edgeKey{source: c.Source, target: c.Target}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.converters[key]; exists {
		if !o.overwrite {
			return &DuplicateConversionError{Source: c.Source, Target: c.Target}
		}
	} else {
		r.order = append(r.order, key)
	}
	r.converters[key] = c
	r.version++
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(c Converter, opts ...RegisterOption) {
	if err := r.Register(c, opts...); err != nil {
		panic(err)
	}
}

// Unregister removes the converter for a pair. It reports whether one was
// removed.
func (r *Registry) Unregister(source, target programs.ProgramType) bool {
	key := edgeKey{source: source, target: target}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.converters[key]; !exists {
		return false
	}
	delete(r.converters, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.version++
	return true
}

// UnregisterExtra removes every converter requiring the given extra and
// returns how many were removed.
func (r *Registry) UnregisterExtra(extra string) int {
	if extra == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	removed := 0
	for _, k := range r.order {
		if r.converters[k].RequiresExtra == extra {
			delete(r.converters, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	r.order = kept
	if removed > 0 {
		r.version++
	}
	return removed
}

// Lookup returns the converter registered for a pair.
func (r *Registry) Lookup(source, target programs.ProgramType) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[edgeKey{source: source, target: target}]
	return c, ok
}

// Converters returns every registered converter in registration order.
func (r *Registry) Converters() []Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Converter, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.converters[k])
	}
	return out
}

// Available returns the converters whose required extra is installed, in
// registration order. Converters gated on a missing extra are omitted.
func (r *Registry) Available(installed capabilities.Set) []Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Converter, 0, len(r.order))
	for _, k := range r.order {
		c := r.converters[k]
		if installed.Has(c.RequiresExtra) {
			out = append(out, c)
		}
	}
	return out
}

// Extras returns the distinct extras required by registered converters.
func (r *Registry) Extras() capabilities.Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := capabilities.Set{}
	for _, c := range r.converters {
		if c.RequiresExtra != "" {
			out[c.RequiresExtra] = true
		}
	}
	return out
}

// Len returns the number of registered converters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.converters)
}

// Version returns a counter that changes whenever the registry is mutated.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// String implements fmt.Stringer.
func (r *Registry) String() string {
	return fmt.Sprintf("Registry(%d converters)", r.Len())
}
