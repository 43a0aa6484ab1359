package data

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// SystemDef describes one scripted system. Reads and Writes name bindings
// registered with the scripting layer (components or resources).
type SystemDef struct {
	Name     string   `yaml:"name"`
	Phase    string   `yaml:"phase"`    // defaults to "update"
	Script   string   `yaml:"script"`   // relative to the scripts dir
	Function string   `yaml:"function"` // global Lua function, defaults to "update"
	Reads    []string `yaml:"reads"`
	Writes   []string `yaml:"writes"`
	Disabled bool     `yaml:"disabled"`
}

type manifestFile struct {
	Systems []SystemDef `yaml:"systems"`
}

// Manifest holds scripted system definitions in file order.
type Manifest struct {
	systems []SystemDef
	byName  map[string]int
}

// LoadManifest loads scripted system definitions from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read system manifest: %w", err)
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func ParseManifest(raw []byte) (*Manifest, error) {
	var f manifestFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse system manifest: %w", err)
	}
	m := &Manifest{byName: make(map[string]int, len(f.Systems))}
	for _, def := range f.Systems {
		if def.Name == "" {
			return nil, fmt.Errorf("system #%d: name is required", len(m.systems)+1)
		}
		if _, dup := m.byName[def.Name]; dup {
			return nil, fmt.Errorf("system %s: defined twice", def.Name)
		}
		if def.Script == "" {
			return nil, fmt.Errorf("system %s: script is required", def.Name)
		}
		for _, r := range def.Reads {
			if slices.Contains(def.Writes, r) {
				return nil, fmt.Errorf("system %s: %s is both read and written", def.Name, r)
			}
		}
		if def.Phase == "" {
			def.Phase = "update"
		}
		if def.Function == "" {
			def.Function = "update"
		}
		m.byName[def.Name] = len(m.systems)
		m.systems = append(m.systems, def)
	}
	return m, nil
}

// Get returns a system definition by name, or nil if not found.
func (m *Manifest) Get(name string) *SystemDef {
	i, ok := m.byName[name]
	if !ok {
		return nil
	}
	return &m.systems[i]
}

// Enabled returns the definitions not marked disabled, in file order.
func (m *Manifest) Enabled() []SystemDef {
	out := make([]SystemDef, 0, len(m.systems))
	for _, def := range m.systems {
		if !def.Disabled {
			out = append(out, def)
		}
	}
	return out
}

// Count returns the number of loaded definitions.
func (m *Manifest) Count() int {
	return len(m.systems)
}
