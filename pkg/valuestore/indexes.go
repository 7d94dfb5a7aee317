package valuestore

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"ai-queryrefine-be/pkg/resolver"

	"gopkg.in/yaml.v3"
)

// IndexEntry describes one full-text index over a label/property pair
type IndexEntry struct {
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
	Kind     string `yaml:"kind"` // node | relationship
	// Name is required for relationship indexes; node indexes default to fulltext_<label>_<property>
	Name string `yaml:"name"`
}

type indexFile struct {
	Indexes []IndexEntry `yaml:"indexes"`
}

// IndexRegistry maps targets to full-text index names and back
type IndexRegistry struct {
	byTarget map[string]string
	byName   map[string]resolver.Target
}

func NewIndexRegistry(entries []IndexEntry) (*IndexRegistry, error) {
	reg := &IndexRegistry{
		byTarget: make(map[string]string, len(entries)),
		byName:   make(map[string]resolver.Target, len(entries)),
	}

	for i, e := range entries {
		if e.Label == "" || e.Property == "" {
			return nil, fmt.Errorf("index entry %d: label and property are required", i)
		}

		kind := resolver.KindNode
		switch strings.ToLower(e.Kind) {
		case "", "node":
		case "relationship":
			kind = resolver.KindRelationship
		default:
			return nil, fmt.Errorf("index entry %d: unknown kind %q", i, e.Kind)
		}

		name := e.Name
		if name == "" {
			if kind == resolver.KindRelationship {
				return nil, fmt.Errorf("index entry %d: relationship index %s.%s needs an explicit name", i, e.Label, e.Property)
			}
			name = DefaultNodeIndexName(e.Label, e.Property)
		}

		target := resolver.Target{Label: e.Label, Property: e.Property, Kind: kind}
		reg.byTarget[targetKey(target)] = name
		reg.byName[name] = target
	}
	return reg, nil
}

// LoadIndexRegistry reads a YAML file of the form `indexes: [{label, property, kind, name}]`.
// An empty path yields an empty registry.
func LoadIndexRegistry(path string) (*IndexRegistry, error) {
	if path == "" {
		return NewIndexRegistry(nil)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index registry: %w", err)
	}

	var f indexFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse index registry %s: %w", path, err)
	}
	return NewIndexRegistry(f.Indexes)
}

func DefaultNodeIndexName(label, property string) string {
	return strings.ToLower("fulltext_" + label + "_" + property)
}

func (r *IndexRegistry) IndexFor(target resolver.Target) (string, bool) {
	name, ok := r.byTarget[targetKey(target)]
	return name, ok
}

// TargetForIndex resolves an index name used in a full-text call back to its label
func (r *IndexRegistry) TargetForIndex(name string) (resolver.Target, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *IndexRegistry) Len() int {
	return len(r.byName)
}

func targetKey(t resolver.Target) string {
	kind := t.Kind
	if kind == "" {
		kind = resolver.KindNode
	}
	// labels and properties are case sensitive in both backends
	return string(kind) + ":" + t.Label + "." + t.Property
}

// IndexSpec is one registered index with its resolved name
type IndexSpec struct {
	Name   string
	Target resolver.Target
}

// Specs lists the registered indexes ordered by name
func (r *IndexRegistry) Specs() []IndexSpec {
	out := make([]IndexSpec, 0, len(r.byName))
	for name, target := range r.byName {
		out = append(out, IndexSpec{Name: name, Target: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
