// Package profile computes summary statistics over tables: the counts that
// feed quality scoring plus per-column distributions for review output.
//
// Profiling is read-only. Duplicate scans reuse pooled key builders and
// counter maps so that profiling large studies does not thrash the GC.
package profile

import (
	"github.com/montanaflynn/stats"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/pool"
	"github.com/gosdtm/validator/table"
)

// rowCounts pools the per-scan occurrence counters.
var rowCounts = pool.NewCountPool[string, int](1024)

// Summarize computes the table statistics the scorer reads: record and
// column counts, the missing-cell fraction, and the surplus duplicate-row
// count.
func Summarize(t *table.Table) sv.TableStats {
	if t == nil {
		return sv.TableStats{}
	}
	return sv.TableStats{
		RecordCount:         t.NumRows(),
		ColumnCount:         t.NumColumns(),
		MissingCellFraction: t.MissingCellFraction(),
		DuplicateRowCount:   DuplicateRowCount(t),
	}
}

// DuplicateGroups returns the row indices of fully duplicate rows, one
// group per distinct row value, in first-occurrence order. Every group has
// at least two members. Cells compare canonically, so "1.0" and "1.00"
// collide.
func DuplicateGroups(t *table.Table) [][]int {
	return DuplicateGroupsBy(t, t.ColumnNames())
}

// DuplicateGroupsBy groups rows that collide on the given column subset.
// Columns absent from the table are ignored; when none resolve the scan
// reports nothing rather than grouping every row together.
func DuplicateGroupsBy(t *table.Table, columns []string) [][]int {
	n := t.NumRows()
	if n < 2 {
		return nil
	}

	cols := make([]*table.Column, 0, len(columns))
	for _, name := range columns {
		if c, ok := t.Column(name); ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	counts := rowCounts.Acquire()
	defer rowCounts.Release(counts)

	keys := make([]string, n)
	kb := pool.AcquireKeyBuilder()
	for i := 0; i < n; i++ {
		kb.Reset()
		for _, c := range cols {
			kb.AppendUnit(c.At(i).Canonical())
		}
		k := kb.String()
		keys[i] = k
		counts[k]++
	}
	kb.Release()

	var groups [][]int
	index := make(map[string]int)
	for i, k := range keys {
		total := counts[k]
		if total < 2 {
			continue
		}
		gi, seen := index[k]
		if !seen {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, make([]int, 0, total))
		}
		groups[gi] = append(groups[gi], i)
	}
	return groups
}

// DuplicateRowCount returns the number of surplus rows: every row beyond
// the first occurrence of its value. A table with one duplicated pair
// counts one.
func DuplicateRowCount(t *table.Table) int {
	surplus := 0
	for _, g := range DuplicateGroups(t) {
		surplus += len(g) - 1
	}
	return surplus
}

// NumericSummary describes the distribution of a numeric column's
// populated values.
type NumericSummary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// ColumnProfile describes one column.
type ColumnProfile struct {
	Name            string           `json:"name"`
	Kind            table.ColumnKind `json:"kind"`
	MissingCount    int              `json:"missing_count"`
	MissingFraction float64          `json:"missing_fraction"`
	DistinctCount   int              `json:"distinct_count"`

	// Numeric is set when every populated cell in the column is a number.
	Numeric *NumericSummary `json:"numeric,omitempty"`
}

// TableProfile is the full profiling report for one table.
type TableProfile struct {
	DomainCode          string          `json:"domain_code"`
	TableName           string          `json:"table_name"`
	RecordCount         int             `json:"record_count"`
	ColumnCount         int             `json:"column_count"`
	MissingCellFraction float64         `json:"missing_cell_fraction"`
	DuplicateRowCount   int             `json:"duplicate_row_count"`
	Columns             []ColumnProfile `json:"columns"`
}

// Stats converts the profile into the scorer's statistics shape.
func (p *TableProfile) Stats() sv.TableStats {
	return sv.TableStats{
		RecordCount:         p.RecordCount,
		ColumnCount:         p.ColumnCount,
		MissingCellFraction: p.MissingCellFraction,
		DuplicateRowCount:   p.DuplicateRowCount,
	}
}

// Column returns the profile for the named column.
func (p *TableProfile) Column(name string) (ColumnProfile, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// Profile computes the full per-column report for one table.
func Profile(t *table.Table) *TableProfile {
	if t == nil {
		return &TableProfile{}
	}

	p := &TableProfile{
		DomainCode:          t.DomainCode(),
		TableName:           t.Name(),
		RecordCount:         t.NumRows(),
		ColumnCount:         t.NumColumns(),
		MissingCellFraction: t.MissingCellFraction(),
		DuplicateRowCount:   DuplicateRowCount(t),
		Columns:             make([]ColumnProfile, 0, t.NumColumns()),
	}

	for _, name := range t.ColumnNames() {
		col, _ := t.Column(name)
		cp := ColumnProfile{
			Name:            name,
			Kind:            col.Kind(),
			MissingCount:    col.MissingCount(),
			MissingFraction: col.MissingFraction(),
			DistinctCount:   len(col.Distinct()),
		}
		populated := col.Len() - col.MissingCount()
		if vals := col.Float64s(); len(vals) > 0 && len(vals) == populated {
			cp.Numeric = numericSummary(vals)
		}
		p.Columns = append(p.Columns, cp)
	}
	return p
}

// numericSummary computes the distribution summary for a non-empty value
// slice. stats errors can only arise from empty input, which the caller
// excludes.
func numericSummary(vals []float64) *NumericSummary {
	minVal, err := stats.Min(vals)
	if err != nil {
		return nil
	}
	maxVal, err := stats.Max(vals)
	if err != nil {
		return nil
	}
	mean, err := stats.Mean(vals)
	if err != nil {
		return nil
	}
	median, err := stats.Median(vals)
	if err != nil {
		return nil
	}
	stddev, err := stats.StandardDeviation(vals)
	if err != nil {
		return nil
	}
	return &NumericSummary{
		Count:  len(vals),
		Min:    minVal,
		Max:    maxVal,
		Mean:   mean,
		Median: median,
		StdDev: stddev,
	}
}
