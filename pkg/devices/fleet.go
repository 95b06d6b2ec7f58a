package devices

import (
	"fmt"
	"sort"

	"github.com/qbraid/qbraid-go/pkg/config"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// Fleet holds the devices declared in configuration.
type Fleet struct {
	devices map[string]*Device
}

// NewFleet creates one device per profile, resolving each profile's
// provider in backends.
func NewFleet(profiles []config.DeviceProfile, tr *transpiler.Transpiler, backends *Backends, opts ...Option) (*Fleet, error) {
	f := &Fleet{devices: make(map[string]*Device, len(profiles))}
	for _, p := range profiles {
		if _, exists := f.devices[p.ID]; exists {
			return nil, fmt.Errorf("device %s declared twice", p.ID)
		}
		backend, err := backends.Get(p.Provider)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", p.ID, err)
		}
		d, err := New(p, tr, backend, opts...)
		if err != nil {
			return nil, err
		}
		f.devices[p.ID] = d
	}
	return f, nil
}

// Get returns a device by id.
func (f *Fleet) Get(id string) (*Device, bool) {
	d, ok := f.devices[id]
	return d, ok
}

// Devices returns the devices ordered by id.
func (f *Fleet) Devices() []*Device {
	out := make([]*Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
