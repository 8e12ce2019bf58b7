// Package reshape pivots wide per-timestamp meter readings into one row per hour and
// one column per date, and combines the results of several sources.
package reshape

import (
	"fmt"
	"strings"

	"github.com/hyperjump/jikan/internal/config"
	"github.com/hyperjump/jikan/internal/entities"
	"github.com/hyperjump/jikan/internal/models"
)

// Reshaper builds long-format tables from source tables.
type Reshaper struct {
	identifierHeader string
	dataStartColumn  int
}

// Option configures a Reshaper.
type Option func(*Reshaper)

// WithIdentifierHeader sets the header label of the short name column.
func WithIdentifierHeader(label string) Option {
	return func(r *Reshaper) { r.identifierHeader = label }
}

// WithDataStartColumn sets the zero-based index of the first measurement column.
func WithDataStartColumn(n int) Option {
	return func(r *Reshaper) { r.dataStartColumn = n }
}

// New returns a Reshaper. Defaults match a meter export: "Short name" in the first
// column, one description column, then readings.
func New(opts ...Option) *Reshaper {
	r := &Reshaper{
		identifierHeader: config.DefaultIdentifierHeader,
		dataStartColumn:  2,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromConfig returns a Reshaper for the given sheet layout.
func FromConfig(cfg *config.SheetConfig) *Reshaper {
	return New(WithIdentifierHeader(cfg.IdentifierHeader), WithDataStartColumn(cfg.StartColumn()))
}

// IdentifierHeader returns the configured short name header label.
func (r *Reshaper) IdentifierHeader() string {
	return r.identifierHeader
}

// Reshape builds the long-format table for every selected short name found in table,
// 24 rows per name in selection order. Names missing from the table produce a warning
// and no rows. Non-numeric readings count as 0 and are summarized in one warning per name.
// A missing identifier column or the absence of measurement columns fails the call with
// models.ErrMalformedSchema.
func (r *Reshaper) Reshape(table *models.SourceTable, selected []string) (*models.Table, []models.Warning, error) {
	if table == nil {
		return nil, nil, fmt.Errorf("%w: nil table", models.ErrSourceUnreadable)
	}
	idCol, err := entities.IdentifierColumn(table, r.identifierHeader)
	if err != nil {
		return nil, nil, err
	}
	cols := r.measurementColumns(table, idCol)
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: no date/time measurement columns", models.ErrMalformedSchema, table.Name)
	}

	dates := distinctDates(cols)
	dateIndex := make(map[string]int, len(dates))
	for i, d := range dates {
		dateIndex[d] = i
	}
	bySlot := make(map[string][]measurementColumn)
	for _, c := range cols {
		bySlot[c.time] = append(bySlot[c.time], c)
	}

	firstRow := make(map[string]int)
	for i, id := range entities.Identifiers(table, idCol) {
		if _, ok := firstRow[id]; !ok && id != "" {
			firstRow[id] = i
		}
	}

	out := &models.Table{Dates: dates}
	var warnings []models.Warning
	for _, name := range selected {
		name = strings.TrimSpace(name)
		row, ok := firstRow[name]
		if !ok {
			warnings = append(warnings, models.NewEntityNotFound(table.Name, name))
			continue
		}
		failures := 0
		for h := 0; h < models.HoursPerDay; h++ {
			slot := models.HourLabel(h)
			values := make([]float64, len(dates))
			for _, c := range bySlot[slot] {
				v, ok := table.Cell(row, c.index).Float()
				if !ok {
					failures++
				}
				values[dateIndex[c.date]] += v
			}
			out.Rows = append(out.Rows, newRow(slot, values, name, table.Name))
		}
		if failures > 0 {
			warnings = append(warnings, models.NewCellParse(table.Name, name, failures))
		}
	}
	return out, warnings, nil
}

// measurementColumns returns the date/time columns from the data start column on,
// skipping the identifier column, placeholder headers, and headers without a comma.
func (r *Reshaper) measurementColumns(table *models.SourceTable, idCol int) []measurementColumn {
	var cols []measurementColumn
	for i := r.dataStartColumn; i < len(table.Header); i++ {
		if i == idCol {
			continue
		}
		h := strings.TrimSpace(table.Header[i])
		if isPlaceholder(h) {
			continue
		}
		date, clock, ok := splitHeader(h)
		if !ok || date == "" {
			continue
		}
		cols = append(cols, measurementColumn{index: i, date: date, time: clock})
	}
	return cols
}

func distinctDates(cols []measurementColumn) []string {
	seen := make(map[string]struct{}, len(cols))
	var dates []string
	for _, c := range cols {
		if _, ok := seen[c.date]; ok {
			continue
		}
		seen[c.date] = struct{}{}
		dates = append(dates, c.date)
	}
	sortDates(dates)
	return dates
}

// newRow builds a row whose Grand Total is summed from the stored values in column
// order, so recomputing it from the row reproduces it exactly.
func newRow(slot string, values []float64, name, source string) models.Row {
	row := models.Row{Time: slot, Values: values, ShortName: name, Source: source}
	row.GrandTotal = row.Sum()
	return row
}
