package phase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/dates"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/rule"
)

// BusinessPhase evaluates the business rule kinds: date-format conformance
// over auto-detected date columns, start/end date ordering, and numeric
// plausibility ranges. The phase is a generic interpreter over the rule
// subset routed to the table's domain; adding a rule never touches its
// control flow.
type BusinessPhase struct {
	dates *dates.Parser
}

// NewBusinessPhase creates a business phase. A nil parser gets a private
// one; the engine normally injects a shared parser so the parse cache
// spans tables.
func NewBusinessPhase(parser *dates.Parser) *BusinessPhase {
	if parser == nil {
		parser = dates.NewParser(0)
	}
	return &BusinessPhase{dates: parser}
}

// Name returns the phase name.
func (p *BusinessPhase) Name() string {
	return "business"
}

// Validate evaluates every business rule routed to this table's domain.
func (p *BusinessPhase) Validate(ctx context.Context, pctx *pipeline.Context) []sv.Finding {
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
		if r.Kind.IsStructural() || !r.AppliesTo(t.DomainCode()) {
			continue
		}
		r := r
		findings = append(findings, evalRule(pctx, r, func() []sv.Finding {
			return p.evaluate(pctx, r)
		})...)
	}
	return findings
}

func (p *BusinessPhase) evaluate(pctx *pipeline.Context, r rule.Rule) []sv.Finding {
	parser := p.dates
	if pctx.Dates != nil {
		parser = pctx.Dates
	}

	switch r.Kind {
	case rule.KindDateFormat:
		return checkDateFormat(pctx, r, parser)
	case rule.KindDateOrder:
		return checkDateOrder(pctx, r, parser)
	case rule.KindNumericRange:
		return checkNumericRange(pctx, r)
	default:
		return nil
	}
}

// checkDateFormat runs the parse cascade over every populated cell of the
// rule's date columns. Each unparseable cell yields its own finding citing
// the raw value and the row key, so a reviewer can locate it without
// re-running anything.
func checkDateFormat(pctx *pipeline.Context, r rule.Rule, parser *dates.Parser) []sv.Finding {
	t := pctx.Table
	tokens := dateTokens(pctx.Options)

	var findings []sv.Finding
	for _, col := range dateColumns(t, r, tokens) {
		for i := 0; i < col.Len(); i++ {
			cell := col.At(i)
			if cell.IsAbsent() {
				continue
			}
			if _, ok := parser.Parse(cell.String()); ok {
				continue
			}
			findings = append(findings, ruleFinding(r, t).
				Message(ruleMessage(r,
					fmt.Sprintf("value %q in column %s does not match any accepted date format",
						cell.String(), col.Name()),
					"column", col.Name(),
					"value", cell.String())).
				Rows(1).
				Keys(t.RowKey(i)).
				Build())
		}
	}
	return findings
}

// checkDateOrder flags rows whose populated end date precedes the populated
// start date. Partial dates compare at the coarser precision, so "2024"
// never precedes "2024-06-01". Cells the cascade cannot parse are skipped
// here; the date-format check owns those.
func checkDateOrder(pctx *pipeline.Context, r rule.Rule, parser *dates.Parser) []sv.Finding {
	t := pctx.Table
	startCol, ok := t.Column(r.Params.StartColumn)
	if !ok {
		return nil
	}
	endCol, ok := t.Column(r.Params.EndColumn)
	if !ok {
		return nil
	}

	var findings []sv.Finding
	for i := 0; i < t.NumRows(); i++ {
		startCell, endCell := startCol.At(i), endCol.At(i)
		if startCell.IsAbsent() || endCell.IsAbsent() {
			continue
		}
		start, ok := parser.Parse(startCell.String())
		if !ok {
			continue
		}
		end, ok := parser.Parse(endCell.String())
		if !ok {
			continue
		}
		if dates.Compare(end, start) >= 0 {
			continue
		}
		findings = append(findings, ruleFinding(r, t).
			Message(ruleMessage(r,
				fmt.Sprintf("end date %s=%q precedes start date %s=%q",
					endCol.Name(), endCell.String(), startCol.Name(), startCell.String()),
				"start", startCell.String(),
				"end", endCell.String())).
			Rows(1).
			Keys(t.RowKey(i)).
			Build())
	}
	return findings
}

// checkNumericRange flags values outside the rule's plausibility bounds.
// Out-of-range is a flag for review, never an automatic rejection, so the
// severity is capped at warning whatever the pack says. One finding covers
// the whole column.
func checkNumericRange(pctx *pipeline.Context, r rule.Rule) []sv.Finding {
	t := pctx.Table
	if r.Params.Min == nil && r.Params.Max == nil {
		return nil
	}
	col, ok := t.Column(r.Params.Column)
	if !ok {
		return nil
	}

	var lo, hi decimal.Decimal
	if r.Params.Min != nil {
		lo = decimal.NewFromFloat(*r.Params.Min)
	}
	if r.Params.Max != nil {
		hi = decimal.NewFromFloat(*r.Params.Max)
	}

	var rows []int
	for i := 0; i < col.Len(); i++ {
		d, ok := col.At(i).Number()
		if !ok {
			continue
		}
		if (r.Params.Min != nil && d.Cmp(lo) < 0) || (r.Params.Max != nil && d.Cmp(hi) > 0) {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	severity := r.Severity
	if severity.Rank() > sv.SeverityWarning.Rank() {
		severity = sv.SeverityWarning
	}

	limit := sampleLimit(pctx.Options)
	return []sv.Finding{sv.NewFinding(severity, r.Category).
		Rule(r.ID).
		Table(t.DomainCode(), t.Name()).
		Message(ruleMessage(r,
			fmt.Sprintf("column %s has %d values %s", col.Name(), len(rows), rangeText(r.Params.Min, r.Params.Max)),
			"column", col.Name(),
			"count", strconv.Itoa(len(rows)))).
		Rows(len(rows)).
		Keys(sampleRowKeys(t, rows, limit)...).
		Check(string(r.Kind)).
		Build()}
}

// rangeText renders the violated bounds for a finding message.
func rangeText(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("outside [%v, %v]", *min, *max)
	case min != nil:
		return fmt.Sprintf("below %v", *min)
	default:
		return fmt.Sprintf("above %v", *max)
	}
}

// dateTokens returns the configured date-column name tokens.
func dateTokens(opts *sv.Options) []string {
	if opts == nil || len(opts.DateColumnTokens) == 0 {
		return []string{"DTC", "DAT", "DATE"}
	}
	return opts.DateColumnTokens
}

// BusinessPhaseConfig returns the standard pipeline configuration for the
// business phase.
func BusinessPhaseConfig(parser *dates.Parser, opts *sv.Options) *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewBusinessPhase(parser),
		Priority: pipeline.PriorityNormal,
		Parallel: true,
		Required: false,
		Enabled:  opts == nil || opts.ValidateBusiness,
	}
}
