package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pack is one serialized rule collection, versioned by the standard
// release it targets.
type Pack struct {
	// Version is the standard version the pack targets, e.g. "3.4".
	Version string `yaml:"version" json:"version"`
	// Name labels the pack in diagnostics.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Rules is the pack content.
	Rules []Rule `yaml:"rules" json:"rules"`
}

// ParsePack decodes a YAML rule pack and validates every rule in it.
func ParsePack(data []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	for i, r := range p.Rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule pack %s, rule %d: %w", p.Name, i, err)
		}
	}
	return &p, nil
}

// Registry builds a registry from the pack's rules.
func (p *Pack) Registry() (*Registry, error) {
	reg := NewRegistry()
	if err := reg.RegisterAll(p.Rules); err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", p.Name, err)
	}
	return reg, nil
}
