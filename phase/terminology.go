package phase

import (
	"context"
	"errors"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/service"
	"github.com/gosdtm/validator/table"
)

// TerminologyPhase checks column values against bound controlled
// vocabularies. Matching is case-sensitive; case and synonym normalization
// belong to the remap correction step, after which re-validation confirms
// the fix. An exact-policy set rejects out-of-set values as errors, an
// extensible set warns.
type TerminologyPhase struct {
	codelists service.CodelistResolver
}

// NewTerminologyPhase creates a terminology phase with the given resolver.
// A nil resolver falls back to the pipeline context's services.
func NewTerminologyPhase(codelists service.CodelistResolver) *TerminologyPhase {
	return &TerminologyPhase{codelists: codelists}
}

// Name returns the phase name.
func (p *TerminologyPhase) Name() string {
	return "terminology"
}

// Validate checks every column with a registered codelist. Columns without
// a binding are skipped; a failing lookup degrades to an informational
// finding so one broken pack source never aborts the table.
func (p *TerminologyPhase) Validate(ctx context.Context, pctx *pipeline.Context) []sv.Finding {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	t := pctx.Table
	if t == nil {
		return nil
	}

	resolver := p.codelists
	if resolver == nil && pctx.Services != nil {
		resolver = pctx.Services.Codelists
	}
	if resolver == nil {
		return nil
	}

	limit := sampleLimit(pctx.Options)

	var findings []sv.Finding
	for _, name := range t.ColumnNames() {
		cl, err := resolver.CodelistFor(ctx, t.DomainCode(), name)
		if err != nil {
			if !errors.Is(err, service.ErrNotFound) {
				findings = append(findings, sv.Info(sv.CategoryTerminology).
					Rule(sv.RuleEvalFailure).
					Table(t.DomainCode(), t.Name()).
					Messagef("codelist lookup for column %s failed: %v", name, err).
					Check("terminology").
					Build())
			}
			continue
		}

		col, _ := t.Column(name)
		findings = append(findings, checkCodelist(t, col, cl, limit)...)
		findings = append(findings, checkForeign(t, col, cl, limit)...)
	}
	return findings
}

// checkCodelist flags populated values outside the permitted set. One
// finding covers the column, naming the distinct offending values.
func checkCodelist(t *table.Table, col *table.Column, cl *service.Codelist, limit int) []sv.Finding {
	var rows []int
	var values []string
	seen := make(map[string]bool)
	for i := 0; i < col.Len(); i++ {
		cell := col.At(i)
		if cell.IsAbsent() {
			continue
		}
		v := cell.String()
		if cl.Contains(v) {
			continue
		}
		rows = append(rows, i)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	severity, ruleID, policy := sv.SeverityError, RuleCodelistViolation, "exact"
	if cl.Policy() == service.PolicyExtensible {
		severity, ruleID, policy = sv.SeverityWarning, RuleCodelistExtension, "extensible"
	}

	return []sv.Finding{sv.NewFinding(severity, sv.CategoryTerminology).
		Rule(ruleID).
		Table(t.DomainCode(), t.Name()).
		Messagef("column %s has %d values outside %s codelist %s: %s",
			col.Name(), len(rows), policy, cl.Name(), joinValues(values, limit)).
		Rows(len(rows)).
		Keys(sampleRowKeys(t, rows, limit)...).
		Check("terminology").
		Build()}
}

// checkForeign flags values that also appear in a vocabulary registered
// for a different semantic axis, an ethnicity term sitting in a race
// column. The intersection is a warning, never a critical: the data may
// still be usable after a mapping decision.
func checkForeign(t *table.Table, col *table.Column, cl *service.Codelist, limit int) []sv.Finding {
	foreign := cl.Foreign()
	if len(foreign) == 0 {
		return nil
	}

	distinct := col.Distinct()

	var findings []sv.Finding
	for _, fv := range foreign {
		conflict := fv.Intersect(distinct)
		if len(conflict) == 0 {
			continue
		}

		inSet := make(map[string]bool, len(conflict))
		for _, v := range conflict {
			inSet[v] = true
		}
		var rows []int
		for i := 0; i < col.Len(); i++ {
			if c := col.At(i); !c.IsAbsent() && inSet[c.String()] {
				rows = append(rows, i)
			}
		}

		findings = append(findings, sv.Warning(sv.CategoryTerminology).
			Rule(RuleForeignVocabulary).
			Table(t.DomainCode(), t.Name()).
			Messagef("column %s contains values from the %s vocabulary: %s",
				col.Name(), fv.Name(), joinValues(conflict, limit)).
			Rows(len(rows)).
			Keys(sampleRowKeys(t, rows, limit)...).
			Check("terminology").
			Build())
	}
	return findings
}

// TerminologyPhaseConfig returns the standard pipeline configuration for
// the terminology phase.
func TerminologyPhaseConfig(codelists service.CodelistResolver, opts *sv.Options) *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewTerminologyPhase(codelists),
		Priority: pipeline.PriorityNormal,
		Parallel: true,
		Required: false, // Can be disabled when no codelists are registered
		Enabled:  codelists != nil && (opts == nil || opts.ValidateTerminology),
	}
}
