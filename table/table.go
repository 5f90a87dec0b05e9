package table

import (
	"fmt"

	"github.com/gosdtm/validator/pool"
)

// Cardinality declares how many rows a single subject may own. The
// one-row-per-subject escalation of duplicate subject keys is driven by
// this flag, never by table name.
type Cardinality uint8

const (
	// ManyRowsPerSubject allows repeated subject keys (event tables).
	ManyRowsPerSubject Cardinality = iota
	// OneRowPerSubject makes duplicate subject keys a critical condition
	// (demographic-style tables).
	OneRowPerSubject
)

func (c Cardinality) String() string {
	if c == OneRowPerSubject {
		return "one-row-per-subject"
	}
	return "many-rows-per-subject"
}

// Meta carries the manifest-declared description of one table.
type Meta struct {
	// DomainCode is the short domain tag, e.g. "DM", "AE", "LB".
	DomainCode string
	// Name is the source file name, e.g. "dm.csv".
	Name string
	// ExpectedRecordCount is advisory; a mismatch is a warning, not an error.
	ExpectedRecordCount int
	// IdentifierColumns is the ordered row-key column list,
	// e.g. STUDYID, USUBJID, AESEQ.
	IdentifierColumns []string
	// SubjectColumn names the subject-key column, e.g. "USUBJID".
	SubjectColumn string
	// Cardinality declares the subject-to-row relationship.
	Cardinality Cardinality
	// MandatoryCoverage escalates subject-closure findings from warning
	// to error for this table.
	MandatoryCoverage bool
	// ConstantColumns are identifiers expected to hold a single distinct
	// value table-wide, e.g. STUDYID.
	ConstantColumns []string
	// RequiredColumns must be present and not entirely empty.
	RequiredColumns []string
}

// Table is one source file in memory. All columns have equal length.
type Table struct {
	meta    Meta
	columns []*Column
	index   map[string]int
	rows    int
}

// Name returns the source file name.
func (t *Table) Name() string {
	return t.meta.Name
}

// DomainCode returns the domain tag.
func (t *Table) DomainCode() string {
	return t.meta.DomainCode
}

// Meta returns a copy of the table metadata.
func (t *Table) Meta() Meta {
	m := t.meta
	m.IdentifierColumns = append([]string(nil), t.meta.IdentifierColumns...)
	m.ConstantColumns = append([]string(nil), t.meta.ConstantColumns...)
	m.RequiredColumns = append([]string(nil), t.meta.RequiredColumns...)
	return m
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return t.rows
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.name
	}
	return out
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) *Column {
	return t.columns[i]
}

// Cell returns the cell at (column name, row index).
func (t *Table) Cell(column string, row int) (Cell, bool) {
	c, ok := t.Column(column)
	if !ok || row < 0 || row >= t.rows {
		return Cell{}, false
	}
	return c.At(row), true
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Cell {
	out := make([]Cell, len(t.columns))
	for j, c := range t.columns {
		out[j] = c.At(i)
	}
	return out
}

// RowKey returns the human-readable identifier tuple for row i, joining
// the declared identifier columns that exist in the table. Absent
// identifier cells are skipped; a row with no usable identifier values
// falls back to the row ordinal.
func (t *Table) RowKey(i int) string {
	kb := pool.AcquireKeyBuilder()
	defer kb.Release()

	for _, name := range t.meta.IdentifierColumns {
		idx, ok := t.index[name]
		if !ok {
			continue
		}
		if v := t.columns[idx].At(i).String(); v != "" {
			kb.AppendField(v)
		}
	}
	if kb.Len() == 0 {
		kb.AppendOrdinal(i)
	}
	return kb.String()
}

// MissingCellFraction returns the absent-cell fraction across the whole
// table, 0 for an empty table.
func (t *Table) MissingCellFraction() float64 {
	total := t.rows * len(t.columns)
	if total == 0 {
		return 0
	}
	missing := 0
	for _, c := range t.columns {
		missing += c.MissingCount()
	}
	return float64(missing) / float64(total)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	columns := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		columns[i] = c.clone()
	}
	index := make(map[string]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	return &Table{meta: t.Meta(), columns: columns, index: index, rows: t.rows}
}

// WithColumn returns a new table with the column replaced when a column of
// the same name exists, or appended otherwise. The receiver is unchanged.
func (t *Table) WithColumn(col *Column) (*Table, error) {
	if col == nil {
		return nil, fmt.Errorf("table %s: nil column", t.meta.Name)
	}
	if col.Len() != t.rows {
		return nil, fmt.Errorf("table %s: column %s has %d cells, table has %d rows",
			t.meta.Name, col.name, col.Len(), t.rows)
	}

	out := t.Clone()
	if i, ok := out.index[col.name]; ok {
		out.columns[i] = col
	} else {
		out.index[col.name] = len(out.columns)
		out.columns = append(out.columns, col)
	}
	return out, nil
}

// Builder assembles a Table column by column, enforcing the equal-length
// invariant at Build time.
type Builder struct {
	meta    Meta
	columns []*Column
	err     error
}

// NewBuilder starts a table for the given domain and source name.
func NewBuilder(domainCode, name string) *Builder {
	return &Builder{meta: Meta{DomainCode: domainCode, Name: name}}
}

// ExpectedRecords declares the advisory expected row count.
func (b *Builder) ExpectedRecords(n int) *Builder {
	b.meta.ExpectedRecordCount = n
	return b
}

// Identifiers declares the ordered row-key columns.
func (b *Builder) Identifiers(columns ...string) *Builder {
	b.meta.IdentifierColumns = append([]string(nil), columns...)
	return b
}

// Subject declares the subject-key column.
func (b *Builder) Subject(column string) *Builder {
	b.meta.SubjectColumn = column
	return b
}

// Cardinality declares the subject-to-row relationship.
func (b *Builder) Cardinality(c Cardinality) *Builder {
	b.meta.Cardinality = c
	return b
}

// MandatoryCoverage escalates subject-closure findings for this table.
func (b *Builder) MandatoryCoverage(v bool) *Builder {
	b.meta.MandatoryCoverage = v
	return b
}

// Constant declares identifiers expected to be constant table-wide.
func (b *Builder) Constant(columns ...string) *Builder {
	b.meta.ConstantColumns = append([]string(nil), columns...)
	return b
}

// Required declares columns that must be present and not entirely empty.
func (b *Builder) Required(columns ...string) *Builder {
	b.meta.RequiredColumns = append([]string(nil), columns...)
	return b
}

// Column adds a text column.
func (b *Builder) Column(name string, cells ...Cell) *Builder {
	return b.add(NewColumn(name, cells))
}

// TypedColumn adds a column with a kind declaration.
func (b *Builder) TypedColumn(name string, kind ColumnKind, cells ...Cell) *Builder {
	return b.add(NewTypedColumn(name, kind, cells))
}

// CodeColumn adds a fixed-length code column.
func (b *Builder) CodeColumn(name string, maxLen int, cells ...Cell) *Builder {
	return b.add(NewCodeColumn(name, maxLen, cells))
}

// AddColumn adds a prepared column.
func (b *Builder) AddColumn(col *Column) *Builder {
	return b.add(col)
}

func (b *Builder) add(col *Column) *Builder {
	if b.err != nil {
		return b
	}
	if col == nil || col.name == "" {
		b.err = fmt.Errorf("table %s: column must have a name", b.meta.Name)
		return b
	}
	for _, existing := range b.columns {
		if existing.name == col.name {
			b.err = fmt.Errorf("table %s: duplicate column %s", b.meta.Name, col.name)
			return b
		}
	}
	b.columns = append(b.columns, col)
	return b
}

// Build finalizes the table. It fails on unequal column lengths or an
// earlier builder error; a table with zero columns is valid and empty.
func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}

	rows := 0
	if len(b.columns) > 0 {
		rows = b.columns[0].Len()
		for _, c := range b.columns[1:] {
			if c.Len() != rows {
				return nil, fmt.Errorf("table %s: column %s has %d cells, want %d",
					b.meta.Name, c.name, c.Len(), rows)
			}
		}
	}

	index := make(map[string]int, len(b.columns))
	for i, c := range b.columns {
		index[c.name] = i
	}

	return &Table{meta: b.meta, columns: b.columns, index: index, rows: rows}, nil
}

// MustBuild is Build for tests and static fixtures; it panics on error.
func (b *Builder) MustBuild() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
