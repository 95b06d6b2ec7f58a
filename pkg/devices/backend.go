package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/stores"
)

// Request is a job handed to a backend.
type Request struct {
	JobID       string
	DeviceID    string
	ProgramType programs.ProgramType

	// Program is the serialized program.
	Program []byte

	Shots int
}

// Outcome is a backend's answer to a request. A backend that runs jobs
// asynchronously returns JobStatusQueued and no result.
type Outcome struct {
	Status stores.JobStatus
	Result string
	Error  string
}

// Backend runs jobs for a device provider. Vendor SDKs implement it outside
// this module.
type Backend interface {
	// Name is the provider name device profiles refer to.
	Name() string

	// Submit hands a job to the provider.
	Submit(ctx context.Context, req Request) (Outcome, error)
}

// DryRunProvider is the provider name of DryRunBackend.
const DryRunProvider = "dryrun"

// DryRunBackend accepts every job and completes it immediately. The result
// echoes the request instead of measurement counts.
type DryRunBackend struct{}

// Name implements Backend.
func (DryRunBackend) Name() string { return DryRunProvider }

// Submit implements Backend.
func (DryRunBackend) Submit(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	result, err := json.Marshal(map[string]interface{}{
		"dry_run":      true,
		"device_id":    req.DeviceID,
		"program_type": req.ProgramType,
		"shots":        req.Shots,
		"bytes":        len(req.Program),
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: stores.JobStatusCompleted, Result: string(result)}, nil
}

// Backends maps provider names to backends.
type Backends struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewBackends returns a set holding the given backends and DryRunBackend.
func NewBackends(backends ...Backend) *Backends {
	b := &Backends{backends: map[string]Backend{DryRunProvider: DryRunBackend{}}}
	for _, be := range backends {
		b.backends[be.Name()] = be
	}
	return b
}

// Register adds or replaces a backend.
func (b *Backends) Register(be Backend) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backends[be.Name()] = be
}

// Get returns the backend for a provider.
func (b *Backends) Get(provider string) (Backend, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	be, ok := b.backends[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return be, nil
}

// Names returns the registered provider names, sorted.
func (b *Backends) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.backends))
	for n := range b.backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
