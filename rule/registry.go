package rule

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the domain-keyed rule collection handed to the validation
// phases. It is built once per run from the resolved rule pack and is
// read-only afterwards, so lookups are safe across table workers.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule after validating it. Duplicate IDs are rejected;
// a pack defining the same rule twice is a configuration error.
func (reg *Registry) Register(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rules[r.ID]; exists {
		return fmt.Errorf("rule %s already registered", r.ID)
	}
	reg.rules[r.ID] = r
	return nil
}

// RegisterAll adds every rule, stopping at the first failure.
func (reg *Registry) RegisterAll(rules []Rule) error {
	for _, r := range rules {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register for static defaults; it panics on error.
func (reg *Registry) MustRegister(r Rule) {
	if err := reg.Register(r); err != nil {
		panic(err)
	}
}

// Rule returns the rule with the given ID.
func (reg *Registry) Rule(id string) (Rule, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rules[id]
	return r, ok
}

// Len returns the number of registered rules.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rules)
}

// All returns every rule sorted by ID.
func (reg *Registry) All() []Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Rule, 0, len(reg.rules))
	for _, r := range reg.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForDomain returns the rules applying to a domain code, merging the
// domain-specific rules with the "all"-domain rules. The result is sorted
// by ID so evaluation order, and therefore finding order, is deterministic.
func (reg *Registry) ForDomain(domainCode string) []Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Rule, 0, len(reg.rules))
	for _, r := range reg.rules {
		if r.AppliesTo(domainCode) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StructuralForDomain returns the domain's rules owned by the structural
// phase, sorted by ID.
func (reg *Registry) StructuralForDomain(domainCode string) []Rule {
	return reg.filterForDomain(domainCode, true)
}

// BusinessForDomain returns the domain's rules owned by the business
// phase, sorted by ID.
func (reg *Registry) BusinessForDomain(domainCode string) []Rule {
	return reg.filterForDomain(domainCode, false)
}

func (reg *Registry) filterForDomain(domainCode string, structural bool) []Rule {
	all := reg.ForDomain(domainCode)
	out := all[:0]
	for _, r := range all {
		if r.Kind.IsStructural() == structural {
			out = append(out, r)
		}
	}
	return out
}
