// Package export serializes reshaped tables as spreadsheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/jikan/internal/models"
)

// SheetName is the name of the single sheet in exported workbooks.
const SheetName = "Transformed"

// Format identifies an output encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a user supplied format name to a Format. Empty means XLSX.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write encodes table to w in format f.
func Write(w io.Writer, table *models.Table, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, table)
	case FormatXLSX, "":
		return WriteXLSX(w, table)
	}
	return fmt.Errorf("unsupported format %q", f)
}

// Bytes encodes table in format f.
func Bytes(table *models.Table, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, table, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXLSX writes table as a workbook with one sheet: a header row
// (time, dates, Grand Total, Short Name) followed by one row per table row.
// Readings and totals are stored as numbers.
func WriteXLSX(w io.Writer, table *models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	columns := table.Columns()
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range table.Rows {
		record := make([]interface{}, 0, len(columns))
		record = append(record, row.Time)
		for _, v := range row.Values {
			record = append(record, v)
		}
		record = append(record, row.GrandTotal, row.ShortName)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	return f.Write(w)
}

// WriteCSV writes table as comma separated values with the same columns as WriteXLSX.
func WriteCSV(w io.Writer, table *models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns()); err != nil {
		return err
	}
	for _, row := range table.Rows {
		record := make([]string, 0, len(row.Values)+3)
		record = append(record, row.Time)
		for _, v := range row.Values {
			record = append(record, formatNumber(v))
		}
		record = append(record, formatNumber(row.GrandTotal), row.ShortName)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
