package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// Manager loads plugins and scripts and keeps their converters registered.
// Each loaded plugin contributes the extra "plugin:<name>"; Probe reports the
// extras of everything currently loaded, so a graph rebuild after a load or
// unload picks up the change.
type Manager struct {
	// mu protects the manager state.
	mu sync.Mutex

	logger   zerolog.Logger
	registry *transpiler.Registry
	catalog  *programs.Catalog
	hostCfg  HostConfig
	loader   *ManifestLoader

	// dir is the last directory passed to LoadDir.
	dir string

	// plugins maps plugin name to the loaded WASM plugin.
	plugins map[string]*WASMPlugin

	// scripts maps script name to its converter.
	scripts map[string]*StarlarkConverter
}

// NewManager creates a manager that registers converters into registry.
func NewManager(registry *transpiler.Registry, catalog *programs.Catalog, cfg HostConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		logger:   logger.With().Str("component", "plugins").Logger(),
		registry: registry,
		catalog:  catalog,
		hostCfg:  cfg.withDefaults(),
		loader:   NewManifestLoader(""),
		plugins:  make(map[string]*WASMPlugin),
		scripts:  make(map[string]*StarlarkConverter),
	}
}

// LoadDir loads every plugin found as <dir>/<plugin>/manifest.yaml. A plugin
// that fails to load is logged and skipped.
func (m *Manager) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	m.mu.Lock()
	m.dir = dir
	m.mu.Unlock()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(dir, entry.Name(), ManifestFile)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		if err := m.LoadPlugin(ctx, manifestPath); err != nil {
			m.logger.Warn().Err(err).Str("manifest", manifestPath).Msg("Skipping plugin")
		}
	}
	return nil
}

// LoadPlugin loads one plugin from its manifest and registers its
// converters. Either all of the plugin's converters are registered or none.
func (m *Manager) LoadPlugin(ctx context.Context, manifestPath string) error {
	manifest, err := m.loader.LoadFromFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	wasmModule, err := os.ReadFile(manifest.WasmPath)
	if err != nil {
		return fmt.Errorf("failed to read WASM module: %w", err)
	}
	if manifest.Raw.Checksum != "" {
		if err := manifest.VerifyChecksum(wasmModule); err != nil {
			return fmt.Errorf("checksum verification failed: %w", err)
		}
	}

	return m.load(ctx, manifest, wasmModule)
}

// LoadModule loads a plugin from manifest bytes and a module held in memory.
func (m *Manager) LoadModule(ctx context.Context, manifestData, wasmModule []byte) error {
	manifest, err := m.loader.LoadFromBytes(manifestData, wasmModule)
	if err != nil {
		return err
	}
	return m.load(ctx, manifest, wasmModule)
}

func (m *Manager) load(ctx context.Context, manifest *Manifest, wasmModule []byte) error {
	name := manifest.Raw.Metadata.Name

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("plugin %s already loaded", name)
	}
	if _, exists := m.scripts[name]; exists {
		return fmt.Errorf("plugin %s conflicts with a starlark converter", name)
	}

	plugin, err := NewWASMPlugin(ctx, manifest, wasmModule, m.hostCfg)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", name, err)
	}

	converters, err := plugin.Converters(m.catalog)
	if err == nil {
		err = m.registerAll(manifest.Extra(), converters)
	}
	if err != nil {
		_ = plugin.Close(ctx)
		return err
	}

	m.plugins[name] = plugin
	m.logger.Info().
		Str("plugin", name).
		Str("version", manifest.Raw.Metadata.Version).
		Bool("verified", manifest.Verified).
		Int("converters", len(converters)).
		Msg("Loaded plugin")
	return nil
}

// registerAll registers converters, rolling back on the first failure.
func (m *Manager) registerAll(extra string, converters []transpiler.Converter) error {
	for _, c := range converters {
		if err := m.registry.Register(c); err != nil {
			m.registry.UnregisterExtra(extra)
			return err
		}
	}
	return nil
}

// LoadStarlark compiles a script converter and registers it.
func (m *Manager) LoadStarlark(spec StarlarkSpec, timeout time.Duration) error {
	sc, err := NewStarlarkConverter(spec, timeout)
	if err != nil {
		return err
	}
	conv, err := sc.Converter(m.catalog)
	if err != nil {
		return err
	}

	name := sc.Spec().Name

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.scripts[name]; exists {
		return fmt.Errorf("starlark converter %s already loaded", name)
	}
	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("starlark converter %s conflicts with a plugin", name)
	}
	if err := m.registry.Register(conv); err != nil {
		return err
	}

	m.scripts[name] = sc
	m.logger.Info().
		Str("converter", conv.DisplayName()).
		Str("source", string(conv.Source)).
		Str("target", string(conv.Target)).
		Msg("Loaded starlark converter")
	return nil
}

// Unload removes a plugin and its converters.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unload(ctx, name)
}

func (m *Manager) unload(ctx context.Context, name string) error {
	plugin, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("plugin %s not loaded", name)
	}
	removed := m.registry.UnregisterExtra(plugin.Manifest().Extra())
	delete(m.plugins, name)

	m.logger.Info().Str("plugin", name).Int("converters", removed).Msg("Unloaded plugin")
	return plugin.Close(ctx)
}

// Reload unloads every WASM plugin and loads the plugin directory again.
// Starlark converters are left in place.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	dir := m.dir
	var errs []error
	for _, name := range m.pluginNames() {
		if err := m.unload(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	m.mu.Unlock()

	if dir != "" {
		if err := m.LoadDir(ctx, dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) pluginNames() []string {
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plugins returns the loaded plugin manifests ordered by name.
func (m *Manager) Plugins() []*Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Manifest, 0, len(m.plugins))
	for _, name := range m.pluginNames() {
		out = append(out, m.plugins[name].Manifest())
	}
	return out
}

// Extras returns the extras provided by loaded plugins and scripts.
func (m *Manager) Extras() capabilities.Set {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := capabilities.NewSet()
	for name := range m.plugins {
		set[ExtraPrefix+name] = true
	}
	for name := range m.scripts {
		set[ExtraPrefix+name] = true
	}
	return set
}

// Probe reports the extras of the loaded plugins and scripts.
func (m *Manager) Probe() capabilities.Probe {
	return capabilities.ProbeFunc(func(context.Context) (capabilities.Set, error) {
		return m.Extras(), nil
	})
}

// Close unloads every plugin.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, name := range m.pluginNames() {
		if err := m.unload(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
