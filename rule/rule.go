// Package rule defines validation rules as plain data and the registry
// that hands each validator its domain's rule subset.
//
// A rule never carries code. Kind selects one of the generic evaluators
// built into the validation phases, Params carries the columns and bounds
// the evaluator needs, and Message optionally overrides the evaluator's
// default finding text. Adding a rule to a pack therefore never touches
// validator control flow.
package rule

import (
	"fmt"
	"strings"

	sv "github.com/gosdtm/validator"
)

// Kind names one generic evaluator.
type Kind string

const (
	// KindIdentifierPresence checks that an identifier column exists and
	// is populated.
	KindIdentifierPresence Kind = "identifier-presence"
	// KindIdentifierConstant checks that a column holds one distinct value
	// table-wide.
	KindIdentifierConstant Kind = "identifier-constant"
	// KindDuplicateRows checks for fully duplicate rows.
	KindDuplicateRows Kind = "duplicate-rows"
	// KindDuplicateKeys checks for rows duplicated on the identifier key.
	KindDuplicateKeys Kind = "duplicate-keys"
	// KindSubjectUniqueness checks subject-key uniqueness on
	// one-row-per-subject tables.
	KindSubjectUniqueness Kind = "subject-uniqueness"
	// KindNumericType checks that declared-numeric columns parse as decimals.
	KindNumericType Kind = "numeric-type"
	// KindCodeLength checks that code columns respect their declared length.
	KindCodeLength Kind = "code-length"
	// KindRequiredPopulated checks that a required column is not entirely
	// empty.
	KindRequiredPopulated Kind = "required-populated"
	// KindRecordCount compares the row count against the manifest's
	// advisory expectation.
	KindRecordCount Kind = "record-count"
	// KindDateFormat runs the date parse cascade over date columns.
	KindDateFormat Kind = "date-format"
	// KindDateOrder checks that a populated end date never precedes its
	// paired start date.
	KindDateOrder Kind = "date-order"
	// KindNumericRange checks numeric values against a plausibility range.
	KindNumericRange Kind = "numeric-range"
)

// structuralKinds lists the kinds evaluated by the structural phase; the
// remainder belong to the business phase.
var structuralKinds = map[Kind]bool{
	KindIdentifierPresence: true,
	KindIdentifierConstant: true,
	KindDuplicateRows:      true,
	KindDuplicateKeys:      true,
	KindSubjectUniqueness:  true,
	KindNumericType:        true,
	KindCodeLength:         true,
	KindRequiredPopulated:  true,
	KindRecordCount:        true,
}

var validKinds = map[Kind]bool{
	KindIdentifierPresence: true,
	KindIdentifierConstant: true,
	KindDuplicateRows:      true,
	KindDuplicateKeys:      true,
	KindSubjectUniqueness:  true,
	KindNumericType:        true,
	KindCodeLength:         true,
	KindRequiredPopulated:  true,
	KindRecordCount:        true,
	KindDateFormat:         true,
	KindDateOrder:          true,
	KindNumericRange:       true,
}

// IsValid reports whether the kind names a known evaluator.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// IsStructural reports whether the structural phase owns this kind.
func (k Kind) IsStructural() bool {
	return structuralKinds[k]
}

// DomainAll marks a rule that applies to every domain.
const DomainAll = "all"

// Params carries the evaluator inputs for one rule. Unused fields stay
// zero; each kind documents what it reads. Column-targeting kinds left
// without targets bind to the columns the table's manifest entry declares
// for that concern, so one pack rule covers every study layout.
type Params struct {
	// Column targets a single column (numeric-type, code-length,
	// required-populated, numeric-range, identifier-constant).
	Column string `yaml:"column,omitempty" json:"column,omitempty"`

	// Columns targets several columns at once (identifier-presence,
	// date-format restriction).
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`

	// StartColumn and EndColumn declare a date pair (date-order).
	StartColumn string `yaml:"start_column,omitempty" json:"start_column,omitempty"`
	EndColumn   string `yaml:"end_column,omitempty" json:"end_column,omitempty"`

	// Min and Max bound a numeric-range rule. A nil bound is open.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// MaxLength overrides the column's declared code length (code-length).
	MaxLength int `yaml:"max_length,omitempty" json:"max_length,omitempty"`
}

// Rule is one named, domain-scoped check definition.
type Rule struct {
	ID       string          `yaml:"id" json:"id"`
	Kind     Kind            `yaml:"kind" json:"kind"`
	Category sv.RuleCategory `yaml:"category" json:"category"`
	Severity sv.Severity     `yaml:"severity" json:"severity"`
	Domains  []string        `yaml:"domains" json:"domains"`
	Params   Params          `yaml:"params,omitempty" json:"params,omitempty"`
	Message  string          `yaml:"message,omitempty" json:"message,omitempty"`
}

// Validate reports configuration problems. Rule problems are programming
// or pack errors and do surface as errors, unlike data findings.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("rule %s: unknown kind %q", r.ID, r.Kind)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if len(r.Domains) == 0 {
		return fmt.Errorf("rule %s: no domains (use %q for every domain)", r.ID, DomainAll)
	}
	switch r.Kind {
	case KindDateOrder:
		if r.Params.StartColumn == "" || r.Params.EndColumn == "" {
			return fmt.Errorf("rule %s: date-order needs start_column and end_column", r.ID)
		}
	case KindNumericRange:
		if r.Params.Column == "" {
			return fmt.Errorf("rule %s: numeric-range needs a column", r.ID)
		}
		if r.Params.Min == nil && r.Params.Max == nil {
			return fmt.Errorf("rule %s: numeric-range needs min or max", r.ID)
		}
	case KindCodeLength:
		if r.Params.MaxLength < 0 {
			return fmt.Errorf("rule %s: negative max_length", r.ID)
		}
	}
	return nil
}

// AppliesTo reports whether the rule covers the given domain code.
func (r Rule) AppliesTo(domainCode string) bool {
	for _, d := range r.Domains {
		if d == DomainAll || strings.EqualFold(d, domainCode) {
			return true
		}
	}
	return false
}

// TargetColumns returns Params.Columns plus Params.Column, deduplicated,
// in declaration order.
func (r Rule) TargetColumns() []string {
	out := make([]string, 0, len(r.Params.Columns)+1)
	seen := make(map[string]bool, len(r.Params.Columns)+1)
	for _, c := range r.Params.Columns {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if c := r.Params.Column; c != "" && !seen[c] {
		out = append(out, c)
	}
	return out
}

// ExpandMessage substitutes {token} placeholders in the rule's message
// override. An empty message returns "" and the caller uses its default.
func (r Rule) ExpandMessage(pairs ...string) string {
	if r.Message == "" {
		return ""
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(r.Message)
}
