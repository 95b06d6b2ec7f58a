// Package capabilities reports which optional extras are installed. A
// converter that requires an extra is only part of the conversion graph
// when the probed set contains it.
package capabilities

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Set is a set of installed extras.
type Set map[string]bool

// NewSet builds a set from names. Empty names are ignored.
func NewSet(extras ...string) Set {
	s := make(Set, len(extras))
	for _, e := range extras {
		if e = strings.TrimSpace(e); e != "" {
			s[e] = true
		}
	}
	return s
}

// Has reports whether an extra is installed. The empty extra is always
// satisfied.
func (s Set) Has(extra string) bool {
	return extra == "" || s[extra]
}

// Missing returns the requested extras not present in the set.
func (s Set) Missing(requested ...string) []string {
	var missing []string
	for _, r := range requested {
		if !s.Has(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Names returns the sorted extra names.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for e, ok := range s {
		if ok {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

// Union returns a new set containing the extras of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for e, ok := range s {
		if ok {
			out[e] = true
		}
	}
	for e, ok := range other {
		if ok {
			out[e] = true
		}
	}
	return out
}

// Without returns a new set with the given extras removed.
func (s Set) Without(extras ...string) Set {
	out := s.Union(nil)
	for _, e := range extras {
		delete(out, e)
	}
	return out
}

// Key returns a stable string identifying the set contents.
func (s Set) Key() string {
	return strings.Join(s.Names(), ",")
}

// String implements fmt.Stringer.
func (s Set) String() string {
	return "[" + strings.Join(s.Names(), " ") + "]"
}

// Probe reports the installed extras.
type Probe interface {
	Probe(ctx context.Context) (Set, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) (Set, error)

// Probe implements Probe.
func (f ProbeFunc) Probe(ctx context.Context) (Set, error) {
	return f(ctx)
}

// Static returns a probe that always reports the given extras.
func Static(extras ...string) Probe {
	set := NewSet(extras...)
	return ProbeFunc(func(context.Context) (Set, error) {
		return set.Union(nil), nil
	})
}

// Environment variables read by Env.
const (
	EnvExtras         = "QBRAID_EXTRAS"
	EnvDisabledExtras = "QBRAID_DISABLED_EXTRAS"
)

// Env returns a probe that starts from base and applies the comma separated
// lists in QBRAID_EXTRAS (added) and QBRAID_DISABLED_EXTRAS (removed).
func Env(base Probe) Probe {
	return Adjust(base,
		func() []string { return splitEnv(EnvExtras) },
		func() []string { return splitEnv(EnvDisabledExtras) },
	)
}

// Adjust returns a probe that adds and removes extras from base's result.
// The lists are evaluated on every probe.
func Adjust(base Probe, enabled, disabled func() []string) Probe {
	return ProbeFunc(func(ctx context.Context) (Set, error) {
		set := Set{}
		if base != nil {
			var err error
			if set, err = base.Probe(ctx); err != nil {
				return nil, err
			}
		}
		if enabled != nil {
			set = set.Union(NewSet(enabled()...))
		}
		if disabled != nil {
			set = set.Without(disabled()...)
		}
		return set, nil
	})
}

// Union returns a probe reporting the union of all probes. The first error
// aborts the probe.
func Union(probes ...Probe) Probe {
	return ProbeFunc(func(ctx context.Context) (Set, error) {
		out := Set{}
		for i, p := range probes {
			if p == nil {
				continue
			}
			s, err := p.Probe(ctx)
			if err != nil {
				return nil, fmt.Errorf("probe %d: %w", i, err)
			}
			out = out.Union(s)
		}
		return out, nil
	})
}

func splitEnv(name string) []string {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
