package terminology

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gosdtm/validator/service"
)

// Pack is one serialized codelist collection, versioned by the standard
// release it targets.
type Pack struct {
	// Version is the standard version the pack targets, e.g. "3.4".
	Version string `yaml:"version" json:"version"`
	// Name labels the pack in diagnostics.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Codelists is the pack content.
	Codelists []CodelistSpec `yaml:"codelists" json:"codelists"`
}

// CodelistSpec is the YAML shape of one codelist.
type CodelistSpec struct {
	Name    string         `yaml:"name" json:"name"`
	Column  string         `yaml:"column" json:"column"`
	Domains []string       `yaml:"domains,omitempty" json:"domains,omitempty"`
	Policy  service.Policy `yaml:"policy" json:"policy"`
	Values  []string       `yaml:"values" json:"values"`
	Foreign []ForeignSpec  `yaml:"foreign,omitempty" json:"foreign,omitempty"`
}

// ForeignSpec is the YAML shape of one foreign-vocabulary registration.
type ForeignSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Values []string `yaml:"values" json:"values"`
}

// validate reports pack configuration problems.
func (cs CodelistSpec) validate() error {
	if cs.Name == "" {
		return fmt.Errorf("codelist has no name")
	}
	if cs.Column == "" {
		return fmt.Errorf("codelist %s: no column", cs.Name)
	}
	if !cs.Policy.IsValid() {
		return fmt.Errorf("codelist %s: unknown policy %q", cs.Name, cs.Policy)
	}
	if len(cs.Values) == 0 {
		return fmt.Errorf("codelist %s: no values", cs.Name)
	}
	for _, f := range cs.Foreign {
		if f.Name == "" || len(f.Values) == 0 {
			return fmt.Errorf("codelist %s: foreign vocabulary needs a name and values", cs.Name)
		}
	}
	return nil
}

// Codelist builds the runtime codelist from the spec.
func (cs CodelistSpec) Codelist() *service.Codelist {
	cl := service.NewCodelist(cs.Name, cs.Column, cs.Policy, cs.Values)
	if len(cs.Domains) > 0 {
		cl.WithDomains(cs.Domains...)
	}
	for _, f := range cs.Foreign {
		cl.WithForeign(f.Name, f.Values)
	}
	return cl
}

// ParsePack decodes a YAML codelist pack and validates every entry.
func ParsePack(data []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse codelist pack: %w", err)
	}
	for i, cs := range p.Codelists {
		if err := cs.validate(); err != nil {
			return nil, fmt.Errorf("codelist pack %s, entry %d: %w", p.Name, i, err)
		}
	}
	return &p, nil
}

// Store builds an in-memory store holding the pack's codelists.
func (p *Pack) Store() (*InMemoryStore, error) {
	s := NewInMemoryStore()
	for _, cs := range p.Codelists {
		if err := s.Register(cs.Codelist()); err != nil {
			return nil, fmt.Errorf("codelist pack %s: %w", p.Name, err)
		}
	}
	return s, nil
}
