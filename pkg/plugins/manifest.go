package plugins

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name looked up in each plugin directory.
const ManifestFile = "manifest.yaml"

// Metadata describes a plugin.
type Metadata struct {
	Name        string `yaml:"name" validate:"required,hostname_rfc1123"`
	Version     string `yaml:"version" validate:"required"`
	Author      string `yaml:"author" validate:"required"`
	License     string `yaml:"license" validate:"required"`
	Description string `yaml:"description,omitempty"`
}

// ConversionSpec declares one converter exported by a plugin.
type ConversionSpec struct {
	// Source and Target are program type aliases.
	Source string `yaml:"source" validate:"required"`
	Target string `yaml:"target" validate:"required,nefield=Source"`

	// Export is the WASM function implementing the conversion.
	Export string `yaml:"export" validate:"required"`

	Lossy bool `yaml:"lossy,omitempty"`
}

// RawManifest is the manifest.yaml document.
type RawManifest struct {
	Metadata    Metadata         `yaml:"metadata" validate:"required"`
	Entrypoint  string           `yaml:"entrypoint" validate:"required"`
	Checksum    string           `yaml:"checksum,omitempty" validate:"omitempty,len=64,hexadecimal"`
	Conversions []ConversionSpec `yaml:"conversions" validate:"required,min=1,dive"`
}

// Manifest is a validated plugin manifest. WasmPath is set when the
// manifest was read from disk; Verified records a successful checksum check.
type Manifest struct {
	Raw      *RawManifest
	Path     string
	WasmPath string
	Verified bool
}

// Extra is the capability name converters from this plugin require.
func (m *Manifest) Extra() string {
	return ExtraPrefix + m.Raw.Metadata.Name
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ManifestLoader reads plugin.yaml files. Entrypoints of manifests loaded
// from bytes resolve against BaseDir.
type ManifestLoader struct {
	BaseDir string
}

// NewManifestLoader returns a loader rooted at baseDir.
func NewManifestLoader(baseDir string) *ManifestLoader {
	return &ManifestLoader{BaseDir: baseDir}
}

// LoadFromFile reads and validates the manifest at path. The entrypoint is
// resolved relative to the manifest's directory and must exist.
func (m *ManifestLoader) LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	raw, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	manifest := &Manifest{Raw: raw, Path: path, WasmPath: m.entrypoint(raw.Entrypoint, path)}
	if _, err := os.Stat(manifest.WasmPath); err != nil {
		return nil, fmt.Errorf("%s: entrypoint: %w", path, err)
	}
	return manifest, nil
}

// LoadFromBytes validates an in-memory manifest. When it declares a checksum,
// wasmModule must match it.
func (m *ManifestLoader) LoadFromBytes(data []byte, wasmModule []byte) (*Manifest, error) {
	raw, err := parseManifest(data)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{Raw: raw}
	if raw.Checksum == "" {
		return manifest, nil
	}
	if err := manifest.VerifyChecksum(wasmModule); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (m *ManifestLoader) entrypoint(entry, manifestPath string) string {
	switch {
	case filepath.IsAbs(entry):
		return entry
	case manifestPath != "":
		return filepath.Join(filepath.Dir(manifestPath), entry)
	default:
		return filepath.Join(m.BaseDir, entry)
	}
}

func parseManifest(data []byte) (*RawManifest, error) {
	var raw RawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validateManifest(&raw); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &raw, nil
}

// validateManifest checks struct tags and that no pair is declared twice.
func validateManifest(raw *RawManifest) error {
	if err := validate.Struct(raw); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}

	seen := make(map[string]bool, len(raw.Conversions))
	for _, c := range raw.Conversions {
		key := c.Source + "->" + c.Target
		if seen[key] {
			return fmt.Errorf("conversion %s -> %s declared twice", c.Source, c.Target)
		}
		seen[key] = true
	}
	return nil
}

// VerifyChecksum compares the SHA-256 of wasmModule with the manifest
// checksum and marks the manifest verified on a match.
func (m *Manifest) VerifyChecksum(wasmModule []byte) error {
	want := m.Raw.Checksum
	if want == "" {
		return fmt.Errorf("plugin %s: manifest has no checksum", m.Raw.Metadata.Name)
	}
	sum := sha256.Sum256(wasmModule)
	if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, want) {
		return fmt.Errorf("plugin %s: checksum mismatch: manifest %s, module %s", m.Raw.Metadata.Name, want, got)
	}
	m.Verified = true
	return nil
}
