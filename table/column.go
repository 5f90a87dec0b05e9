package table

import "sort"

// ColumnKind declares what a column's populated cells are expected to hold.
// Declarations drive the structural type checks; KindText columns are
// unconstrained.
type ColumnKind uint8

const (
	// KindText places no constraint on cell content.
	KindText ColumnKind = iota
	// KindNumeric requires every populated cell to parse as a decimal.
	KindNumeric
	// KindCode requires populated cells not to exceed a declared length.
	KindCode
	// KindDate marks the column for the date-format cascade regardless of
	// its name.
	KindDate
)

func (k ColumnKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindCode:
		return "code"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column is one named, typed cell sequence.
type Column struct {
	name    string
	kind    ColumnKind
	codeLen int
	cells   []Cell
}

// NewColumn creates a text column.
func NewColumn(name string, cells []Cell) *Column {
	return &Column{name: name, cells: cells}
}

// NewTypedColumn creates a column with a kind declaration.
func NewTypedColumn(name string, kind ColumnKind, cells []Cell) *Column {
	return &Column{name: name, kind: kind, cells: cells}
}

// NewCodeColumn creates a fixed-length code column. Populated cells longer
// than maxLen violate the code-length check.
func NewCodeColumn(name string, maxLen int, cells []Cell) *Column {
	return &Column{name: name, kind: KindCode, codeLen: maxLen, cells: cells}
}

// Name returns the column name.
func (c *Column) Name() string {
	return c.name
}

// Kind returns the declared column kind.
func (c *Column) Kind() ColumnKind {
	return c.kind
}

// CodeLen returns the declared maximum code length (0 when undeclared).
func (c *Column) CodeLen() int {
	return c.codeLen
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.cells)
}

// At returns the cell at row i.
func (c *Column) At(i int) Cell {
	return c.cells[i]
}

// MissingCount returns the number of absent cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.cells {
		if cell.IsAbsent() {
			n++
		}
	}
	return n
}

// MissingFraction returns the absent-cell fraction, 0 for an empty column.
func (c *Column) MissingFraction() float64 {
	if len(c.cells) == 0 {
		return 0
	}
	return float64(c.MissingCount()) / float64(len(c.cells))
}

// Distinct returns the sorted distinct text of populated cells.
func (c *Column) Distinct() []string {
	seen := make(map[string]struct{}, len(c.cells))
	for _, cell := range c.cells {
		if cell.IsAbsent() {
			continue
		}
		seen[cell.String()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Strings returns the text of populated cells in row order.
func (c *Column) Strings() []string {
	out := make([]string, 0, len(c.cells))
	for _, cell := range c.cells {
		if cell.IsAbsent() {
			continue
		}
		out = append(out, cell.String())
	}
	return out
}

// Float64s returns the populated numeric cells in row order. Non-numeric
// populated cells are skipped.
func (c *Column) Float64s() []float64 {
	out := make([]float64, 0, len(c.cells))
	for _, cell := range c.cells {
		if f, ok := cell.Float64(); ok {
			out = append(out, f)
		}
	}
	return out
}

// clone returns a deep copy of the column.
func (c *Column) clone() *Column {
	cells := make([]Cell, len(c.cells))
	copy(cells, c.cells)
	return &Column{name: c.name, kind: c.kind, codeLen: c.codeLen, cells: cells}
}

// withCells returns a copy of the column carrying replacement cells.
func (c *Column) withCells(cells []Cell) *Column {
	return &Column{name: c.name, kind: c.kind, codeLen: c.codeLen, cells: cells}
}
