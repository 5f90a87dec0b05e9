// Package correct implements the deterministic transforms applied between
// validation passes: sequence regeneration, term remapping, and date
// normalization. Every transform returns a new Table and leaves its input
// unchanged, so the pre-correction data stays available for diffing and
// the corrected table can be re-validated to confirm the fix.
package correct

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/dates"
	"github.com/gosdtm/validator/table"
)

// defaultSubjectColumn groups sequence numbers when the manifest does not
// name a subject column.
const defaultSubjectColumn = "USUBJID"

// RegenerateSequence rewrites seqColumn as a dense 1-based rank within each
// subject group, ordered by the tie-break columns. The sort is stable, so
// rows equal on every tie-break keep their original relative order and the
// output is identical across runs. Tie-break columns the table does not
// have are ignored; rows whose subject cell is empty form their own group.
func RegenerateSequence(t *table.Table, seqColumn string, tieBreaks ...string) (*table.Table, error) {
	if t == nil {
		return nil, fmt.Errorf("regenerate sequence: nil table")
	}
	if seqColumn == "" {
		return nil, fmt.Errorf("regenerate sequence: no sequence column")
	}

	subject := t.Meta().SubjectColumn
	if subject == "" {
		subject = defaultSubjectColumn
	}
	subjCol, hasSubject := t.Column(subject)

	var tieCols []*table.Column
	for _, name := range tieBreaks {
		if c, ok := t.Column(name); ok {
			tieCols = append(tieCols, c)
		}
	}

	// Group rows by subject key in first-occurrence order. A table without
	// the subject column is a single group.
	groups := make(map[string][]int)
	for i := 0; i < t.NumRows(); i++ {
		key := ""
		if hasSubject {
			key = subjCol.At(i).String()
		}
		groups[key] = append(groups[key], i)
	}

	cells := make([]table.Cell, t.NumRows())
	for _, rows := range groups {
		ordered := append([]int(nil), rows...)
		sort.SliceStable(ordered, func(a, b int) bool {
			for _, col := range tieCols {
				if c := compareCells(col.At(ordered[a]), col.At(ordered[b])); c != 0 {
					return c < 0
				}
			}
			return false
		})
		for rank, row := range ordered {
			cells[row] = table.Number(decimal.NewFromInt(int64(rank + 1)))
		}
	}

	return t.WithColumn(table.NewTypedColumn(seqColumn, table.KindNumeric, cells))
}

// RemapTerms rewrites the column's populated cells through the mapping.
// Values the mapping does not cover pass through unchanged; the next
// validation pass flags whatever is still outside the codelist. The column
// must exist: remapping targets one declared column, so a missing one is a
// caller error rather than a data condition.
func RemapTerms(t *table.Table, column string, mapping map[string]string) (*table.Table, error) {
	if t == nil {
		return nil, fmt.Errorf("remap terms: nil table")
	}
	col, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("remap terms: table %s has no column %s", t.Name(), column)
	}

	cells := make([]table.Cell, col.Len())
	for i := 0; i < col.Len(); i++ {
		cell := col.At(i)
		if !cell.IsAbsent() {
			if mapped, ok := mapping[cell.String()]; ok {
				cell = table.Text(mapped)
			}
		}
		cells[i] = cell
	}

	return t.WithColumn(table.NewTypedColumn(column, col.Kind(), cells))
}

// NormalizeDates rewrites every parseable value in the given columns to its
// canonical ISO form at the value's own precision: day to 2006-01-02, month
// to 2006-01, year to 2006, timed to 2006-01-02T15:04:05. Values the
// cascade cannot parse stay untouched and each yields a finding, so nothing
// is silently dropped. Columns the table does not have are skipped. A nil
// parser gets a private one.
func NormalizeDates(t *table.Table, parser *dates.Parser, columns ...string) (*table.Table, []sv.Finding) {
	if t == nil {
		return nil, nil
	}
	if parser == nil {
		parser = dates.NewParser(0)
	}

	out := t.Clone()
	var findings []sv.Finding
	for _, name := range columns {
		col, ok := out.Column(name)
		if !ok {
			continue
		}

		cells := make([]table.Cell, col.Len())
		changed := false
		for i := 0; i < col.Len(); i++ {
			cell := col.At(i)
			cells[i] = cell
			if cell.IsAbsent() {
				continue
			}
			parsed, ok := parser.Parse(cell.String())
			if !ok {
				findings = append(findings, sv.Warning(sv.CategoryDate).
					Rule(sv.RuleDateNotNormalized).
					Table(t.DomainCode(), t.Name()).
					Messagef("value %q in column %s could not be normalized to ISO form",
						cell.String(), name).
					Rows(1).
					Keys(t.RowKey(i)).
					Check("normalize-dates").
					Build())
				continue
			}
			if canonical := parsed.Canonical(); canonical != cell.String() {
				cells[i] = table.Text(canonical)
				changed = true
			}
		}
		if !changed {
			continue
		}

		normalized, err := out.WithColumn(table.NewTypedColumn(name, col.Kind(), cells))
		if err != nil {
			// Cannot happen for a same-length rewrite; keep the column as is.
			continue
		}
		out = normalized
	}
	return out, findings
}

// compareCells orders two cells for sequence tie-breaking: numbers compare
// numerically, everything else by text. Absent cells sort first.
func compareCells(a, b table.Cell) int {
	an, aok := a.Number()
	bn, bok := b.Number()
	if aok && bok {
		return an.Cmp(bn)
	}
	return strings.Compare(a.String(), b.String())
}
