package models

import "fmt"

// SourceTable is one sheet loaded into memory: a header row and data rows.
// Rows may be shorter than Header; absent trailing cells are missing.
type SourceTable struct {
	Name   string
	Header []string
	Rows   [][]Cell
}

// Cell returns the cell at row r, column c, or a missing cell when out of range.
func (t *SourceTable) Cell(r, c int) Cell {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return Missing()
	}
	return t.Rows[r][c]
}

// Output column labels.
const (
	ColumnTime       = "time"
	ColumnGrandTotal = "Grand Total"
	ColumnShortName  = "Short Name"
)

// HoursPerDay is the number of hour slots produced per entity.
const HoursPerDay = 24

// HourLabel returns the slot label for hour h, e.g. "07:00".
func HourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}

// Row is one hour of one entity in the long-format output.
// Values is aligned with the owning Table's Dates.
type Row struct {
	Time       string    `json:"time"`
	Values     []float64 `json:"values"`
	GrandTotal float64   `json:"grand_total"`
	ShortName  string    `json:"short_name"`
	Source     string    `json:"source,omitempty"`
}

// Table is the long-format output: time, one column per date, Grand Total, Short Name.
type Table struct {
	Dates []string `json:"dates"`
	Rows  []Row    `json:"rows"`
}

// Columns returns the output header in column order.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.Dates)+3)
	cols = append(cols, ColumnTime)
	cols = append(cols, t.Dates...)
	return append(cols, ColumnGrandTotal, ColumnShortName)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Value returns the row's value for date, or 0 when the table has no such date column.
func (t *Table) Value(row int, date string) float64 {
	for i, d := range t.Dates {
		if d == date && i < len(t.Rows[row].Values) {
			return t.Rows[row].Values[i]
		}
	}
	return 0
}

// Sum returns the sum of the row's date values in column order.
func (r *Row) Sum() float64 {
	var total float64
	for _, v := range r.Values {
		total += v
	}
	return total
}

// Source is one loaded input: a table, or the error that prevented loading it.
type Source struct {
	Name  string
	Table *SourceTable
	Err   error
}
