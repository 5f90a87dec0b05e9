package phase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/profile"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/table"
)

// defaultSubjectColumn is the SDTM-universal subject key, used when neither
// the manifest nor the rule names one.
const defaultSubjectColumn = "USUBJID"

// StructurePhase evaluates the structural rule kinds: identifier presence
// and constancy, duplicate detection, declared-type conformance, required
// columns, and the record-count advisory. A malformed cell produces a
// finding, never an abort.
type StructurePhase struct{}

// NewStructurePhase creates a new structure phase.
func NewStructurePhase() *StructurePhase {
	return &StructurePhase{}
}

// Name returns the phase name.
func (p *StructurePhase) Name() string {
	return "structure"
}

// Validate evaluates every structural rule routed to this table's domain.
func (p *StructurePhase) Validate(ctx context.Context, pctx *pipeline.Context) []sv.Finding {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	t := pctx.Table
	if t == nil {
		return nil
	}

	var findings []sv.Finding
	for _, r := range pctx.Rules {
		if !r.Kind.IsStructural() || !r.AppliesTo(t.DomainCode()) {
			continue
		}
		r := r
		findings = append(findings, evalRule(pctx, r, func() []sv.Finding {
			return p.evaluate(pctx, r)
		})...)
	}
	return findings
}

// evaluate dispatches one rule to its evaluator.
func (p *StructurePhase) evaluate(pctx *pipeline.Context, r rule.Rule) []sv.Finding {
	t := pctx.Table
	limit := sampleLimit(pctx.Options)

	switch r.Kind {
	case rule.KindIdentifierPresence:
		return checkIdentifierPresence(t, r, limit)
	case rule.KindIdentifierConstant:
		return checkIdentifierConstant(t, r, limit)
	case rule.KindDuplicateRows:
		return checkDuplicateRows(t, r, limit)
	case rule.KindDuplicateKeys:
		return checkDuplicateKeys(t, r, limit)
	case rule.KindSubjectUniqueness:
		return checkSubjectUniqueness(t, r, limit)
	case rule.KindNumericType:
		return checkNumericType(t, r, limit)
	case rule.KindCodeLength:
		return checkCodeLength(t, r, limit)
	case rule.KindRequiredPopulated:
		return checkRequiredPopulated(t, r)
	case rule.KindRecordCount:
		return checkRecordCount(t, r)
	default:
		return nil
	}
}

// checkIdentifierPresence flags identifier columns that are absent,
// entirely empty, or partially empty. Partial emptiness is always an
// error, whatever the rule's severity: the key still resolves for most
// rows, so the table remains partially usable.
func checkIdentifierPresence(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	targets := r.TargetColumns()
	if len(targets) == 0 {
		targets = t.Meta().IdentifierColumns
	}

	var findings []sv.Finding
	for _, name := range targets {
		col, ok := t.Column(name)
		if !ok {
			findings = append(findings, ruleFinding(r, t).
				Message(ruleMessage(r,
					fmt.Sprintf("identifier column %s is not present", name),
					"column", name)).
				Build())
			continue
		}
		if col.Len() == 0 {
			continue
		}

		missing := col.MissingCount()
		switch {
		case missing == col.Len():
			findings = append(findings, ruleFinding(r, t).
				Message(ruleMessage(r,
					fmt.Sprintf("identifier column %s is present but entirely empty", name),
					"column", name)).
				Rows(missing).
				Build())
		case missing > 0:
			frac := col.MissingFraction()
			findings = append(findings, sv.Error(r.Category).
				Rule(r.ID).
				Table(t.DomainCode(), t.Name()).
				Message(ruleMessage(r,
					fmt.Sprintf("identifier column %s has %d empty cells (%s)",
						name, missing, percent(frac)),
					"column", name,
					"count", strconv.Itoa(missing),
					"fraction", percent(frac))).
				Rows(missing).
				Keys(sampleRowKeys(t, missingRows(col), limit)...).
				Check(string(r.Kind)).
				Build())
		}
	}
	return findings
}

// checkIdentifierConstant flags declared-constant identifiers that hold
// more than one distinct value across the table.
func checkIdentifierConstant(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	targets := r.TargetColumns()
	if len(targets) == 0 {
		targets = t.Meta().ConstantColumns
	}

	var findings []sv.Finding
	for _, name := range targets {
		col, ok := t.Column(name)
		if !ok {
			continue
		}
		distinct := col.Distinct()
		if len(distinct) <= 1 {
			continue
		}
		findings = append(findings, ruleFinding(r, t).
			Message(ruleMessage(r,
				fmt.Sprintf("column %s is expected to be constant but has %d distinct values: %s",
					name, len(distinct), joinValues(distinct, limit)),
				"column", name,
				"count", strconv.Itoa(len(distinct)))).
			Build())
	}
	return findings
}

// checkDuplicateRows flags fully duplicate rows: every surplus copy of a
// row beyond its first occurrence counts once.
func checkDuplicateRows(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	groups := profile.DuplicateGroups(t)
	if len(groups) == 0 {
		return nil
	}

	var rows []int
	for _, g := range groups {
		rows = append(rows, g[1:]...)
	}
	sort.Ints(rows)

	frac := fraction(len(rows), t.NumRows())
	return []sv.Finding{ruleFinding(r, t).
		Message(ruleMessage(r,
			fmt.Sprintf("%d fully duplicate rows (%s of %d records)",
				len(rows), percent(frac), t.NumRows()),
			"count", strconv.Itoa(len(rows)),
			"fraction", percent(frac))).
		Rows(len(rows)).
		Keys(sampleRowKeys(t, rows, limit)...).
		Build()}
}

// checkDuplicateKeys flags rows sharing an identifier-key tuple with an
// earlier row. Event tables legitimately repeat subject keys, so the
// default pack keeps this advisory.
func checkDuplicateKeys(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	keyCols := r.TargetColumns()
	if len(keyCols) == 0 {
		keyCols = t.Meta().IdentifierColumns
	}
	if len(keyCols) == 0 {
		return nil
	}

	groups := profile.DuplicateGroupsBy(t, keyCols)

	var rows []int
	for _, g := range groups {
		// Rows with a fully empty key are an emptiness problem, not a
		// key collision.
		if allAbsent(t, keyCols, g[0]) {
			continue
		}
		rows = append(rows, g[1:]...)
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Ints(rows)

	frac := fraction(len(rows), t.NumRows())
	return []sv.Finding{ruleFinding(r, t).
		Message(ruleMessage(r,
			fmt.Sprintf("%d rows share an identifier key with an earlier row (%s of %d records)",
				len(rows), percent(frac), t.NumRows()),
			"count", strconv.Itoa(len(rows)),
			"fraction", percent(frac))).
		Rows(len(rows)).
		Keys(sampleRowKeys(t, rows, limit)...).
		Build()}
}

// checkSubjectUniqueness flags repeated subject keys on tables declared
// one-row-per-subject. The cardinality declaration gates the check; the
// domain name never does.
func checkSubjectUniqueness(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	meta := t.Meta()
	if meta.Cardinality != table.OneRowPerSubject {
		return nil
	}

	subject := r.Params.Column
	if subject == "" {
		subject = meta.SubjectColumn
	}
	if subject == "" {
		subject = defaultSubjectColumn
	}
	col, ok := t.Column(subject)
	if !ok {
		return nil
	}

	var rows []int
	repeated := 0
	for _, g := range profile.DuplicateGroupsBy(t, []string{subject}) {
		if col.At(g[0]).IsAbsent() {
			continue
		}
		repeated++
		rows = append(rows, g...)
	}
	if repeated == 0 {
		return nil
	}
	sort.Ints(rows)

	return []sv.Finding{ruleFinding(r, t).
		Message(ruleMessage(r,
			fmt.Sprintf("table is declared one-row-per-subject but %d subject keys in %s repeat across %d rows",
				repeated, subject, len(rows)),
			"column", subject,
			"count", strconv.Itoa(repeated))).
		Rows(len(rows)).
		Keys(sampleRowKeys(t, rows, limit)...).
		Build()}
}

// checkNumericType flags populated cells in declared-numeric columns that
// do not parse as numbers.
func checkNumericType(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	var findings []sv.Finding
	for _, col := range typedColumns(t, r, table.KindNumeric) {
		var rows []int
		for i := 0; i < col.Len(); i++ {
			cell := col.At(i)
			if cell.IsAbsent() || cell.IsNumber() {
				continue
			}
			rows = append(rows, i)
		}
		if len(rows) == 0 {
			continue
		}

		frac := fraction(len(rows), col.Len())
		findings = append(findings, ruleFinding(r, t).
			Message(ruleMessage(r,
				fmt.Sprintf("numeric column %s has %d non-numeric values (%s)",
					col.Name(), len(rows), percent(frac)),
				"column", col.Name(),
				"count", strconv.Itoa(len(rows)),
				"fraction", percent(frac))).
			Rows(len(rows)).
			Keys(sampleRowKeys(t, rows, limit)...).
			Build())
	}
	return findings
}

// checkCodeLength flags code-column values longer than the declared
// maximum. Params.MaxLength overrides the column declaration.
func checkCodeLength(t *table.Table, r rule.Rule, limit int) []sv.Finding {
	var findings []sv.Finding
	for _, col := range typedColumns(t, r, table.KindCode) {
		maxLen := col.CodeLen()
		if r.Params.MaxLength > 0 {
			maxLen = r.Params.MaxLength
		}
		if maxLen <= 0 {
			continue
		}

		var rows []int
		for i := 0; i < col.Len(); i++ {
			cell := col.At(i)
			if cell.IsAbsent() {
				continue
			}
			if utf8.RuneCountInString(cell.String()) > maxLen {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 {
			continue
		}

		findings = append(findings, ruleFinding(r, t).
			Message(ruleMessage(r,
				fmt.Sprintf("code column %s has %d values longer than %d characters",
					col.Name(), len(rows), maxLen),
				"column", col.Name(),
				"count", strconv.Itoa(len(rows)),
				"max", strconv.Itoa(maxLen))).
			Rows(len(rows)).
			Keys(sampleRowKeys(t, rows, limit)...).
			Build())
	}
	return findings
}

// checkRequiredPopulated flags required columns that are absent or hold no
// values at all. Partial emptiness is deliberately not flagged here; the
// missing-data score tiers absorb it.
func checkRequiredPopulated(t *table.Table, r rule.Rule) []sv.Finding {
	targets := r.TargetColumns()
	if len(targets) == 0 {
		targets = t.Meta().RequiredColumns
	}

	var findings []sv.Finding
	for _, name := range targets {
		col, ok := t.Column(name)
		if !ok {
			findings = append(findings, ruleFinding(r, t).
				Message(ruleMessage(r,
					fmt.Sprintf("required column %s is not present", name),
					"column", name)).
				Build())
			continue
		}
		if col.Len() > 0 && col.MissingCount() == col.Len() {
			findings = append(findings, ruleFinding(r, t).
				Message(ruleMessage(r,
					fmt.Sprintf("required column %s is present but entirely empty", name),
					"column", name)).
				Rows(col.Len()).
				Build())
		}
	}
	return findings
}

// checkRecordCount compares the row count against the manifest's advisory
// expectation.
func checkRecordCount(t *table.Table, r rule.Rule) []sv.Finding {
	expected := t.Meta().ExpectedRecordCount
	if expected <= 0 || t.NumRows() == expected {
		return nil
	}
	return []sv.Finding{ruleFinding(r, t).
		Message(ruleMessage(r,
			fmt.Sprintf("table has %d records; the manifest expects %d",
				t.NumRows(), expected),
			"count", strconv.Itoa(t.NumRows()),
			"expected", strconv.Itoa(expected))).
		Build()}
}

// typedColumns resolves a rule's column targets, defaulting to every
// column declared with the given kind.
func typedColumns(t *table.Table, r rule.Rule, kind table.ColumnKind) []*table.Column {
	if targets := r.TargetColumns(); len(targets) > 0 {
		cols := make([]*table.Column, 0, len(targets))
		for _, name := range targets {
			if c, ok := t.Column(name); ok {
				cols = append(cols, c)
			}
		}
		return cols
	}

	var cols []*table.Column
	for _, name := range t.ColumnNames() {
		c, _ := t.Column(name)
		if c.Kind() == kind {
			cols = append(cols, c)
		}
	}
	return cols
}

// allAbsent reports whether every named cell in the row is empty.
func allAbsent(t *table.Table, columns []string, row int) bool {
	for _, name := range columns {
		if c, ok := t.Column(name); ok && !c.At(row).IsAbsent() {
			return false
		}
	}
	return true
}

// StructurePhaseConfig returns the standard pipeline configuration for the
// structure phase.
func StructurePhaseConfig() *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewStructurePhase(),
		Priority: pipeline.PriorityEarly,
		Parallel: false,
		Required: true,
		Enabled:  true,
	}
}
