// Package table holds the in-memory representation of one source dataset:
// an ordered sequence of named columns whose cells align by row index.
//
// Tables are created once by the loader and are read-only to validators.
// Correction helpers never mutate a Table; they derive a new one, so the
// pre-correction Table stays available for diffing.
package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// CellKind discriminates the three scalar shapes a cell can take.
type CellKind uint8

const (
	// CellAbsent is an empty cell. The zero Cell is absent.
	CellAbsent CellKind = iota
	// CellText is a non-empty string value.
	CellText
	// CellNumber is an exact decimal value. The original text is retained.
	CellNumber
)

// Cell is one scalar value: text, an exact decimal number, or absent.
// Numbers are decimals rather than binary floats so that duplicate
// detection and range comparison are exact.
type Cell struct {
	kind CellKind
	raw  string
	num  decimal.Decimal
}

// Absent returns an empty cell.
func Absent() Cell {
	return Cell{}
}

// Text returns a string cell. An empty string yields an absent cell.
func Text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{kind: CellText, raw: s}
}

// Number returns a numeric cell rendered canonically.
func Number(d decimal.Decimal) Cell {
	return Cell{kind: CellNumber, raw: d.String(), num: d}
}

// ParseCell converts raw loader text into a cell. Empty text is absent;
// text that parses as a decimal becomes a number with its original
// spelling retained; everything else is text.
func ParseCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return Cell{kind: CellNumber, raw: s, num: d}
	}
	return Cell{kind: CellText, raw: s}
}

// CoerceCell converts an arbitrary loader value (XLSX cells arrive as
// interface{}) into a cell.
func CoerceCell(v any) (Cell, error) {
	switch n := v.(type) {
	case nil:
		return Cell{}, nil
	case Cell:
		return n, nil
	case decimal.Decimal:
		return Number(n), nil
	case float64:
		return Number(decimal.NewFromFloat(n)), nil
	case float32:
		return Number(decimal.NewFromFloat32(n)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return Number(decimal.NewFromInt(cast.ToInt64(n))), nil
	case time.Time:
		if n.Hour() == 0 && n.Minute() == 0 && n.Second() == 0 {
			return Text(n.Format("2006-01-02")), nil
		}
		return Text(n.Format("2006-01-02T15:04:05")), nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return Cell{}, fmt.Errorf("coerce cell: %w", err)
	}
	return ParseCell(strings.TrimSpace(s)), nil
}

// Kind returns the cell's kind.
func (c Cell) Kind() CellKind {
	return c.kind
}

// IsAbsent reports whether the cell is empty.
func (c Cell) IsAbsent() bool {
	return c.kind == CellAbsent
}

// IsNumber reports whether the cell holds a decimal value.
func (c Cell) IsNumber() bool {
	return c.kind == CellNumber
}

// String returns the cell's original text, or "" when absent.
func (c Cell) String() string {
	return c.raw
}

// Number returns the decimal value when the cell is numeric.
func (c Cell) Number() (decimal.Decimal, bool) {
	if c.kind != CellNumber {
		return decimal.Decimal{}, false
	}
	return c.num, true
}

// Float64 returns the cell as a float64 when numeric. Intended for
// statistics; exact comparisons should use Number.
func (c Cell) Float64() (float64, bool) {
	if c.kind != CellNumber {
		return 0, false
	}
	return c.num.InexactFloat64(), true
}

// Equal reports value equality. Numbers compare by decimal value, so
// "1.0" equals "1.00"; text compares by exact string.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	if c.kind == CellNumber {
		return c.num.Equal(o.num)
	}
	return c.raw == o.raw
}

// Canonical returns a normalized representation for composite map keys:
// numbers render canonically ("1.0" and "1.00" both yield "1"), text
// passes through, absent is "".
func (c Cell) Canonical() string {
	if c.kind == CellNumber {
		return c.num.String()
	}
	return c.raw
}
