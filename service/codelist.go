// Package service defines the controlled-vocabulary lookup contracts the
// validation phases depend on, plus the chain and caching decorators that
// combine implementations. Keeping the interfaces here and the stores in
// the terminology package lets the engine swap sponsor-specific codelist
// sources without touching phase code.
package service

import (
	"context"
	"sort"
	"strings"
)

// Policy is a codelist's conformance policy.
type Policy string

const (
	// PolicyExact rejects any value outside the permitted set as an error.
	PolicyExact Policy = "exact"
	// PolicyExtensible downgrades out-of-set values to warnings, since
	// sponsors may extend the list.
	PolicyExtensible Policy = "extensible"
)

// IsValid reports whether the policy is recognized.
func (p Policy) IsValid() bool {
	return p == PolicyExact || p == PolicyExtensible
}

// ForeignVocabulary is a permitted-value set belonging to a different
// semantic axis, registered against a column to catch cross-axis entry
// mistakes (an ethnicity term typed into a race column).
type ForeignVocabulary struct {
	name   string
	values map[string]struct{}
}

// NewForeignVocabulary builds a foreign vocabulary set.
func NewForeignVocabulary(name string, values []string) ForeignVocabulary {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return ForeignVocabulary{name: name, values: set}
}

// Name returns the vocabulary label used in finding messages.
func (f ForeignVocabulary) Name() string {
	return f.name
}

// Contains reports set membership. Comparison is case-sensitive.
func (f ForeignVocabulary) Contains(value string) bool {
	_, ok := f.values[value]
	return ok
}

// Intersect returns the sorted values present in both the vocabulary and
// the given value list.
func (f ForeignVocabulary) Intersect(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if f.Contains(v) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Codelist is one controlled vocabulary bound to a column.
type Codelist struct {
	name    string
	column  string
	domains []string
	policy  Policy
	values  map[string]struct{}
	order   []string
	foreign []ForeignVocabulary
}

// NewCodelist builds a codelist. Values keep their declaration order for
// messages. Membership tests are case-sensitive; case and synonym
// normalization is a correction step, not a comparison mode.
func NewCodelist(name, column string, policy Policy, values []string) *Codelist {
	set := make(map[string]struct{}, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := set[v]; dup {
			continue
		}
		set[v] = struct{}{}
		order = append(order, v)
	}
	return &Codelist{
		name:   name,
		column: column,
		policy: policy,
		values: set,
		order:  order,
	}
}

// WithDomains restricts the codelist to the given domain codes.
// A codelist without domains applies everywhere its column appears.
func (c *Codelist) WithDomains(domains ...string) *Codelist {
	c.domains = append([]string(nil), domains...)
	return c
}

// WithForeign registers a foreign vocabulary against the column.
func (c *Codelist) WithForeign(name string, values []string) *Codelist {
	c.foreign = append(c.foreign, NewForeignVocabulary(name, values))
	return c
}

// Name returns the codelist label.
func (c *Codelist) Name() string {
	return c.name
}

// Column returns the bound column name.
func (c *Codelist) Column() string {
	return c.column
}

// Policy returns the conformance policy.
func (c *Codelist) Policy() Policy {
	return c.policy
}

// Values returns the permitted values in declaration order.
func (c *Codelist) Values() []string {
	return append([]string(nil), c.order...)
}

// Foreign returns the registered foreign vocabularies.
func (c *Codelist) Foreign() []ForeignVocabulary {
	return c.foreign
}

// Contains reports permitted-set membership. Case-sensitive.
func (c *Codelist) Contains(value string) bool {
	_, ok := c.values[value]
	return ok
}

// AppliesTo reports whether the codelist covers the given domain code.
func (c *Codelist) AppliesTo(domainCode string) bool {
	if len(c.domains) == 0 {
		return true
	}
	for _, d := range c.domains {
		if strings.EqualFold(d, domainCode) {
			return true
		}
	}
	return false
}

// CodelistResolver looks up the codelist bound to a column in a domain.
// Implementations return ErrNotFound when no codelist is registered; the
// terminology phase then skips the column.
type CodelistResolver interface {
	CodelistFor(ctx context.Context, domainCode, column string) (*Codelist, error)
}

// CodelistLister enumerates every registered codelist, used by diagnostics
// and the remap correction helper.
type CodelistLister interface {
	Codelists(ctx context.Context) ([]*Codelist, error)
}
