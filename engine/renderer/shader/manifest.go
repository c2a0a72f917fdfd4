package shader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestEntry describes one shader to load from disk, as declared in a
// shader manifest YAML file.
type ManifestEntry struct {
	Key        string `yaml:"key"`
	Type       string `yaml:"type"` // "vertex", "fragment", or "compute"
	SourcePath string `yaml:"source"`
}

// Manifest is the top-level shape of a shader manifest file: a flat list of
// shaders to construct via NewShader, keyed for later pipeline registration.
type Manifest struct {
	Shaders []ManifestEntry `yaml:"shaders"`
}

func (e ManifestEntry) shaderType() (ShaderType, error) {
	switch e.Type {
	case "vertex":
		return ShaderTypeVertex, nil
	case "fragment":
		return ShaderTypeFragment, nil
	case "compute":
		return ShaderTypeCompute, nil
	default:
		return 0, fmt.Errorf("shader: manifest entry %q has unknown type %q", e.Key, e.Type)
	}
}

// LoadManifest parses a shader manifest YAML file without constructing any
// shaders, useful for validating a manifest before the renderer is ready.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("shader: failed to read manifest %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("shader: failed to parse manifest %q: %w", path, err)
	}
	return m, nil
}

// LoadShadersFromManifest parses a manifest YAML file and constructs every
// declared shader via NewShader, returning them keyed by ManifestEntry.Key.
// Intended as an alternative to hand-wiring each shader's key/type/path at
// call sites when a project's shader set is large enough to warrant an
// external, data-driven manifest.
func LoadShadersFromManifest(path string) (map[string]Shader, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	shaders := make(map[string]Shader, len(m.Shaders))
	for _, entry := range m.Shaders {
		st, err := entry.shaderType()
		if err != nil {
			return nil, err
		}
		shaders[entry.Key] = NewShader(entry.Key, st, entry.SourcePath)
	}
	return shaders, nil
}
