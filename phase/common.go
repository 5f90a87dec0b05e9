package phase

import (
	"fmt"
	"strings"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/table"
)

// Identifiers for findings raised without a configured rule: terminology
// conflicts come from codelist bindings, cross-domain checks from table
// metadata.
const (
	// RuleCodelistViolation flags values outside an exact codelist.
	RuleCodelistViolation = "SDV-030"
	// RuleCodelistExtension flags values outside an extensible codelist.
	RuleCodelistExtension = "SDV-031"
	// RuleForeignVocabulary flags values that belong to another column's
	// vocabulary.
	RuleForeignVocabulary = "SDV-032"
	// RuleSubjectClosure flags subject keys absent from the anchor table.
	RuleSubjectClosure = "SDV-040"
	// RuleReferenceWindow flags dates outside a subject's reference window.
	RuleReferenceWindow = "SDV-041"
	// RuleVisitLabelDrift flags visit labels spelled differently across tables.
	RuleVisitLabelDrift = "SDV-042"
	// RuleCrossDomainSkipped records a cross-domain check that could not run.
	RuleCrossDomainSkipped = "SDV-043"
)

// ruleFinding seeds a finding builder from a rule definition: its severity,
// category, and identifier, bound to the table under validation. The check
// name is the rule's kind.
func ruleFinding(r rule.Rule, t *table.Table) *sv.FindingBuilder {
	return sv.NewFinding(r.Severity, r.Category).
		Rule(r.ID).
		Table(t.DomainCode(), t.Name()).
		Check(string(r.Kind))
}

// ruleMessage applies the rule's message override with the given {token}
// pairs, falling back to the evaluator's default text.
func ruleMessage(r rule.Rule, fallback string, pairs ...string) string {
	if msg := r.ExpandMessage(pairs...); msg != "" {
		return msg
	}
	return fallback
}

// sampleLimit returns the configured row-key sample cap.
func sampleLimit(opts *sv.Options) int {
	if opts == nil || opts.RowKeySampleSize <= 0 {
		return sv.DefaultRowKeySampleSize
	}
	return opts.RowKeySampleSize
}

// sampleRowKeys renders display keys for at most limit of the given rows.
func sampleRowKeys(t *table.Table, rows []int, limit int) []string {
	if len(rows) == 0 || limit <= 0 {
		return nil
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	keys := make([]string, 0, len(rows))
	for _, i := range rows {
		keys = append(keys, t.RowKey(i))
	}
	return keys
}

// missingRows returns the indices of a column's absent cells.
func missingRows(col *table.Column) []int {
	var rows []int
	for i := 0; i < col.Len(); i++ {
		if col.At(i).IsAbsent() {
			rows = append(rows, i)
		}
	}
	return rows
}

// isDateColumn reports whether a column name carries one of the configured
// date tokens. Single-letter-prefixed SDTM names put the token at the end
// (AESTDTC); longer tokens may appear mid-name (BRTHDAT in some sponsors'
// raw extracts), so matching is a case-insensitive substring test.
func isDateColumn(name string, tokens []string) bool {
	upper := strings.ToUpper(name)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(tok)) {
			return true
		}
	}
	return false
}

// detectDateColumns returns the columns the date checks cover: declared
// date columns plus token-matched names.
func detectDateColumns(t *table.Table, tokens []string) []*table.Column {
	var cols []*table.Column
	for _, name := range t.ColumnNames() {
		c, _ := t.Column(name)
		if c.Kind() == table.KindDate || isDateColumn(name, tokens) {
			cols = append(cols, c)
		}
	}
	return cols
}

// dateColumns resolves the columns a date rule covers: the rule's explicit
// targets when it names any, otherwise every detected date column.
func dateColumns(t *table.Table, r rule.Rule, tokens []string) []*table.Column {
	if targets := r.TargetColumns(); len(targets) > 0 {
		cols := make([]*table.Column, 0, len(targets))
		for _, name := range targets {
			if c, ok := t.Column(name); ok {
				cols = append(cols, c)
			}
		}
		return cols
	}
	return detectDateColumns(t, tokens)
}

// evalRule runs one rule evaluator under a recovery guard. A panicking
// evaluator yields a single informational finding naming the rule, and
// evaluation of the remaining rules continues.
func evalRule(pctx *pipeline.Context, r rule.Rule, fn func() []sv.Finding) (findings []sv.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			findings = []sv.Finding{
				sv.Info(sv.CategoryQuality).
					Rule(sv.RuleEvalFailure).
					Table(pctx.Table.DomainCode(), pctx.Table.Name()).
					Messagef("rule %s failed to evaluate: %v", r.ID, rec).
					Check(string(r.Kind)).
					Build(),
			}
		}
	}()
	return fn()
}

// percent renders a fraction as a percentage with one decimal.
func percent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

// fraction guards division by zero for per-row ratios.
func fraction(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

// joinValues renders a bounded list of values for a finding message.
func joinValues(values []string, limit int) string {
	if limit > 0 && len(values) > limit {
		return strings.Join(values[:limit], ", ") + fmt.Sprintf(" and %d more", len(values)-limit)
	}
	return strings.Join(values, ", ")
}
