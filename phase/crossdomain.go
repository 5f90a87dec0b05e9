package phase

import (
	"context"
	"sort"
	"strings"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/dates"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/table"
)

// SDTM conventions used when the phase is not configured otherwise.
const (
	defaultReferenceStart = "RFSTDTC"
	defaultReferenceEnd   = "RFENDTC"
	defaultVisitColumn    = "VISIT"
)

// CrossDomainPhase checks consistency across a study's tables: subject
// closure against the anchor table, reference-date windows, and visit
// label drift. It needs study scope and runs after every per-table phase;
// a check that cannot run records an informational finding instead of
// silently passing.
//
// Findings carry the domain code of the table they concern, which is not
// necessarily the table under validation. The engine routes them to the
// matching per-table results after the study-wide synchronization point.
type CrossDomainPhase struct {
	dates          *dates.Parser
	referenceStart string
	referenceEnd   string
	visitColumns   []string
}

// CrossDomainOption configures the phase.
type CrossDomainOption func(*CrossDomainPhase)

// WithReferenceColumns overrides the anchor columns bounding each
// subject's reference window.
func WithReferenceColumns(start, end string) CrossDomainOption {
	return func(p *CrossDomainPhase) {
		p.referenceStart, p.referenceEnd = start, end
	}
}

// WithVisitColumns overrides the columns scanned for visit labels.
func WithVisitColumns(columns ...string) CrossDomainOption {
	return func(p *CrossDomainPhase) {
		p.visitColumns = append([]string(nil), columns...)
	}
}

// NewCrossDomainPhase creates a cross-domain phase with SDTM defaults:
// reference window RFSTDTC/RFENDTC and visit labels in VISIT. A nil
// parser gets a private one.
func NewCrossDomainPhase(parser *dates.Parser, opts ...CrossDomainOption) *CrossDomainPhase {
	if parser == nil {
		parser = dates.NewParser(0)
	}
	p := &CrossDomainPhase{
		dates:          parser,
		referenceStart: defaultReferenceStart,
		referenceEnd:   defaultReferenceEnd,
		visitColumns:   []string{defaultVisitColumn},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the phase name.
func (p *CrossDomainPhase) Name() string {
	return "cross-domain"
}

// Validate runs the cross-domain checks over the study in the context.
// Without study scope it does nothing; without an anchor table it returns
// a single informational finding and skips every check.
func (p *CrossDomainPhase) Validate(ctx context.Context, pctx *pipeline.Context) []sv.Finding {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	if !pctx.HasStudy() {
		return nil
	}

	anchorDomain := sv.DefaultAnchorDomain
	if pctx.Options != nil && pctx.Options.AnchorDomain != "" {
		anchorDomain = pctx.Options.AnchorDomain
	}

	anchor := p.findAnchor(pctx, anchorDomain)
	if anchor == nil {
		return []sv.Finding{sv.Info(sv.CategoryCrossDomain).
			Rule(RuleCrossDomainSkipped).
			Table(anchorDomain, "").
			Messagef("cross-domain checks skipped: anchor table %s is not present", anchorDomain).
			Check("cross-domain").
			Build()}
	}

	parser := p.dates
	if pctx.Dates != nil {
		parser = pctx.Dates
	}
	limit := sampleLimit(pctx.Options)

	var findings []sv.Finding
	findings = append(findings, p.checkSubjectClosure(pctx, anchor, limit)...)
	findings = append(findings, p.checkReferenceWindows(pctx, anchor, parser, limit)...)
	findings = append(findings, p.checkVisitDrift(pctx, limit)...)
	return findings
}

// findAnchor resolves the anchor table, tolerating domain-code case
// differences between the manifest and the options.
func (p *CrossDomainPhase) findAnchor(pctx *pipeline.Context, anchorDomain string) *table.Table {
	if t, ok := pctx.SiblingTable(anchorDomain); ok {
		return t
	}
	for dc, t := range pctx.Study {
		if strings.EqualFold(dc, anchorDomain) {
			return t
		}
	}
	return nil
}

// checkSubjectClosure verifies that every table's subject keys form a
// subset of the anchor's. Each orphan key yields one finding, bounded by
// the sample cap per table; mandatory-coverage tables escalate to error.
func (p *CrossDomainPhase) checkSubjectClosure(pctx *pipeline.Context, anchor *table.Table, limit int) []sv.Finding {
	anchorCol, ok := anchor.Column(subjectColumn(anchor))
	if !ok {
		return []sv.Finding{sv.Info(sv.CategoryCrossDomain).
			Rule(RuleCrossDomainSkipped).
			Table(anchor.DomainCode(), anchor.Name()).
			Messagef("subject closure skipped: anchor table has no subject column %s", subjectColumn(anchor)).
			Check("cross-domain").
			Build()}
	}

	universe := make(map[string]bool, anchorCol.Len())
	for i := 0; i < anchorCol.Len(); i++ {
		if c := anchorCol.At(i); !c.IsAbsent() {
			universe[c.String()] = true
		}
	}

	var findings []sv.Finding
	for _, dc := range studyDomains(pctx) {
		t := pctx.Study[dc]
		if t == nil || strings.EqualFold(dc, anchor.DomainCode()) {
			continue
		}
		col, ok := t.Column(subjectColumn(t))
		if !ok {
			continue
		}

		rowsByKey := make(map[string][]int)
		for i := 0; i < col.Len(); i++ {
			cell := col.At(i)
			if cell.IsAbsent() {
				continue
			}
			key := cell.String()
			if universe[key] {
				continue
			}
			rowsByKey[key] = append(rowsByKey[key], i)
		}
		if len(rowsByKey) == 0 {
			continue
		}

		severity := sv.SeverityWarning
		if t.Meta().MandatoryCoverage {
			severity = sv.SeverityError
		}

		orphans := sortedKeys(rowsByKey)
		if len(orphans) > limit {
			orphans = orphans[:limit]
		}
		for _, key := range orphans {
			rows := rowsByKey[key]
			findings = append(findings, sv.NewFinding(severity, sv.CategoryCrossDomain).
				Rule(RuleSubjectClosure).
				Table(t.DomainCode(), t.Name()).
				Messagef("subject %s does not exist in anchor table %s", key, anchor.DomainCode()).
				Rows(len(rows)).
				Keys(sampleRowKeys(t, rows, limit)...).
				Check("cross-domain").
				Build())
		}
	}
	return findings
}

// checkReferenceWindows verifies that dated records fall inside each
// subject's anchor reference window. A subject with a missing or
// unparseable bound is excluded from the check, and a single
// informational finding records how many were excluded.
func (p *CrossDomainPhase) checkReferenceWindows(pctx *pipeline.Context, anchor *table.Table, parser *dates.Parser, limit int) []sv.Finding {
	startCol, okStart := anchor.Column(p.referenceStart)
	endCol, okEnd := anchor.Column(p.referenceEnd)
	if !okStart || !okEnd {
		return []sv.Finding{sv.Info(sv.CategoryCrossDomain).
			Rule(RuleCrossDomainSkipped).
			Table(anchor.DomainCode(), anchor.Name()).
			Messagef("reference window check skipped: anchor table has no %s/%s columns",
				p.referenceStart, p.referenceEnd).
			Check("cross-domain").
			Build()}
	}
	subjCol, ok := anchor.Column(subjectColumn(anchor))
	if !ok {
		return []sv.Finding{sv.Info(sv.CategoryCrossDomain).
			Rule(RuleCrossDomainSkipped).
			Table(anchor.DomainCode(), anchor.Name()).
			Messagef("reference window check skipped: anchor table has no subject column %s",
				subjectColumn(anchor)).
			Check("cross-domain").
			Build()}
	}

	type window struct {
		start, end dates.Parsed
	}
	windows := make(map[string]window, anchor.NumRows())
	skipped := 0
	for i := 0; i < anchor.NumRows(); i++ {
		subj := subjCol.At(i)
		if subj.IsAbsent() {
			continue
		}
		sCell, eCell := startCol.At(i), endCol.At(i)
		if sCell.IsAbsent() || eCell.IsAbsent() {
			skipped++
			continue
		}
		start, okS := parser.Parse(sCell.String())
		end, okE := parser.Parse(eCell.String())
		if !okS || !okE {
			skipped++
			continue
		}
		windows[subj.String()] = window{start: start, end: end}
	}

	var findings []sv.Finding
	if skipped > 0 {
		findings = append(findings, sv.Info(sv.CategoryCrossDomain).
			Rule(RuleCrossDomainSkipped).
			Table(anchor.DomainCode(), anchor.Name()).
			Messagef("reference window check skipped for %d subjects with a missing or unparseable %s/%s",
				skipped, p.referenceStart, p.referenceEnd).
			Rows(skipped).
			Check("cross-domain").
			Build())
	}

	tokens := dateTokens(pctx.Options)
	for _, dc := range studyDomains(pctx) {
		t := pctx.Study[dc]
		if t == nil || strings.EqualFold(dc, anchor.DomainCode()) {
			continue
		}
		subj, ok := t.Column(subjectColumn(t))
		if !ok {
			continue
		}

		for _, col := range detectDateColumns(t, tokens) {
			var rows []int
			for i := 0; i < col.Len(); i++ {
				cell := col.At(i)
				if cell.IsAbsent() {
					continue
				}
				sc := subj.At(i)
				if sc.IsAbsent() {
					continue
				}
				w, ok := windows[sc.String()]
				if !ok {
					continue
				}
				d, ok := parser.Parse(cell.String())
				if !ok {
					continue
				}
				if dates.Compare(d, w.start) < 0 || dates.Compare(d, w.end) > 0 {
					rows = append(rows, i)
				}
			}
			if len(rows) == 0 {
				continue
			}
			findings = append(findings, sv.Warning(sv.CategoryCrossDomain).
				Rule(RuleReferenceWindow).
				Table(t.DomainCode(), t.Name()).
				Messagef("column %s has %d dates outside the subject reference window %s..%s",
					col.Name(), len(rows), p.referenceStart, p.referenceEnd).
				Rows(len(rows)).
				Keys(sampleRowKeys(t, rows, limit)...).
				Check("cross-domain").
				Build())
		}
	}
	return findings
}

// checkVisitDrift flags visit labels spelled differently across tables.
// Labels compare after upper-casing and whitespace collapsing; a label
// seen in at least two tables with at least two raw spellings drifts, and
// every involved table gets a finding listing the conflicting spellings.
func (p *CrossDomainPhase) checkVisitDrift(pctx *pipeline.Context, limit int) []sv.Finding {
	type usage struct {
		spellings map[string]bool
		domains   map[string]bool
	}
	labels := make(map[string]*usage)
	domainRows := make(map[string]map[string][]int)

	for _, dc := range studyDomains(pctx) {
		t := pctx.Study[dc]
		if t == nil {
			continue
		}
		for _, name := range p.visitColumns {
			col, ok := t.Column(name)
			if !ok {
				continue
			}
			for i := 0; i < col.Len(); i++ {
				cell := col.At(i)
				if cell.IsAbsent() {
					continue
				}
				norm := normalizeLabel(cell.String())
				if norm == "" {
					continue
				}
				u := labels[norm]
				if u == nil {
					u = &usage{spellings: make(map[string]bool), domains: make(map[string]bool)}
					labels[norm] = u
				}
				u.spellings[cell.String()] = true
				u.domains[dc] = true

				if domainRows[dc] == nil {
					domainRows[dc] = make(map[string][]int)
				}
				domainRows[dc][norm] = append(domainRows[dc][norm], i)
			}
		}
	}

	var findings []sv.Finding
	for _, norm := range sortedKeys(labels) {
		u := labels[norm]
		if len(u.domains) < 2 || len(u.spellings) < 2 {
			continue
		}
		spellings := sortedKeys(u.spellings)
		for _, dc := range sortedKeys(u.domains) {
			t := pctx.Study[dc]
			rows := domainRows[dc][norm]
			findings = append(findings, sv.Warning(sv.CategoryCrossDomain).
				Rule(RuleVisitLabelDrift).
				Table(t.DomainCode(), t.Name()).
				Messagef("visit label %q is spelled inconsistently across tables: %s",
					norm, joinValues(spellings, limit)).
				Rows(len(rows)).
				Keys(sampleRowKeys(t, rows, limit)...).
				Check("cross-domain").
				Build())
		}
	}
	return findings
}

// subjectColumn resolves a table's subject-key column name.
func subjectColumn(t *table.Table) string {
	if s := t.Meta().SubjectColumn; s != "" {
		return s
	}
	return defaultSubjectColumn
}

// studyDomains returns the study's domain codes in lexical order, keeping
// finding order deterministic across runs.
func studyDomains(pctx *pipeline.Context) []string {
	out := make([]string, 0, len(pctx.Study))
	for dc := range pctx.Study {
		out = append(out, dc)
	}
	sort.Strings(out)
	return out
}

// normalizeLabel upper-cases and collapses internal whitespace so that
// "Week 1" and "WEEK  1" compare equal.
func normalizeLabel(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CrossDomainPhaseConfig returns the standard pipeline configuration for
// the cross-domain phase. The phase fires only on study-scope contexts.
func CrossDomainPhaseConfig(parser *dates.Parser, opts *sv.Options) *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    pipeline.WhenStudy(NewCrossDomainPhase(parser)),
		Priority: pipeline.PriorityLast,
		Parallel: false,
		Required: false,
		Enabled:  opts == nil || opts.ValidateCrossDomain,
	}
}
