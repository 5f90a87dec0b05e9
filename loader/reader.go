package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gosdtm/validator/table"
)

// readGrid reads one dataset file into a header row plus data rows.
// The format is chosen by extension: .xlsx via excelize, everything
// else as CSV.
func readGrid(path string) ([]string, [][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}
	return readCSV(path)
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Ragged rows are padded with absent cells during assembly.
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("read csv: no header row")
	}
	return rows[0], rows[1:], nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("read xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("read xlsx sheet %s: no header row", sheets[0])
	}
	return rows[0], rows[1:], nil
}

// buildTable assembles the in-memory table from a raw row grid, applying
// the manifest entry's metadata and column-kind declarations. Rows shorter
// than the header pad with absent cells; values beyond the header are
// dropped. Header cells that are blank after trimming declare no column,
// so a trailing delimiter in a hand-edited file does not fail the load.
func buildTable(e *Entry, name string, header []string, rows [][]string) (*table.Table, error) {
	card, err := e.cardinality()
	if err != nil {
		return nil, err
	}

	b := table.NewBuilder(e.Domain, name).
		Identifiers(e.IdentifierColumns...).
		Subject(e.SubjectColumn).
		Cardinality(card).
		ExpectedRecords(e.ExpectedRecords).
		MandatoryCoverage(e.MandatoryCoverage).
		Constant(e.ConstantColumns...).
		Required(e.RequiredColumns...)

	for col, h := range header {
		colName := strings.TrimSpace(h)
		if colName == "" {
			continue
		}
		cells := make([]table.Cell, len(rows))
		for row := range rows {
			var raw any
			if col < len(rows[row]) {
				raw = rows[row][col]
			}
			cell, err := table.CoerceCell(raw)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", name, row+2, colName, err)
			}
			cells[row] = cell
		}
		b.AddColumn(e.column(colName, cells))
	}

	return b.Build()
}
