// Package e2e provides end-to-end tests; this file builds meter-reading workbooks in every
// supported input format.
package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of spreadsheet extensions used in E2E file-based tests.
// Archives (.zip) are built from these with Archive.
var SupportedFileExtensions = []string{".xlsx", ".ods", ".csv"}

// MeterSheet describes a wide meter export: "Short name", "Description", then one
// "date, HH:00" column per date and hour.
type MeterSheet struct {
	Dates []string
	Names []string
}

// Reading is the deterministic value of name index n on date index d at hour h.
func Reading(n, d, h int) float64 {
	return float64(n*1000 + d*100 + h)
}

// Header returns the header row.
func (m MeterSheet) Header() []string {
	header := []string{"Short name", "Description"}
	for _, d := range m.Dates {
		for h := 0; h < 24; h++ {
			header = append(header, fmt.Sprintf("%s, %02d:00", d, h))
		}
	}
	return header
}

func (m MeterSheet) row(n int) []string {
	row := []string{m.Names[n], "meter " + strconv.Itoa(n)}
	for d := range m.Dates {
		for h := 0; h < 24; h++ {
			row = append(row, strconv.FormatFloat(Reading(n, d, h), 'f', -1, 64))
		}
	}
	return row
}

// Build returns the sheet encoded as ext (.xlsx, .ods or .csv).
func (m MeterSheet) Build(ext string) ([]byte, error) {
	switch ext {
	case ".xlsx":
		return m.xlsx()
	case ".ods":
		return m.ods(), nil
	case ".csv":
		return m.csv()
	default:
		return nil, fmt.Errorf("unsupported fixture extension %q", ext)
	}
}

func (m MeterSheet) xlsx() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	header := m.Header()
	values := make([]interface{}, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := f.SetSheetRow("Sheet1", "A1", &values); err != nil {
		return nil, err
	}
	for n := range m.Names {
		row := m.row(n)
		values := make([]interface{}, len(row))
		values[0], values[1] = row[0], row[1]
		for i := 2; i < len(row); i++ {
			v, _ := strconv.ParseFloat(row[i], 64)
			values[i] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, n+2)
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m MeterSheet) csv() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(m.Header())
	for n := range m.Names {
		_ = w.Write(m.row(n))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (m MeterSheet) ods() []byte {
	var b strings.Builder
	b.WriteString(`<office:document-content><office:body><office:spreadsheet><table:table table:name="Readings">`)
	writeRow := func(cells []string, numericFrom int) {
		b.WriteString("<table:table-row>")
		for i, c := range cells {
			if i >= numericFrom {
				fmt.Fprintf(&b, `<table:table-cell office:value-type="float" office:value="%s"><text:p>%s</text:p></table:table-cell>`, c, c)
				continue
			}
			fmt.Fprintf(&b, `<table:table-cell office:value-type="string"><text:p>%s</text:p></table:table-cell>`, c)
		}
		b.WriteString("</table:table-row>")
	}
	header := m.Header()
	writeRow(header, len(header))
	for n := range m.Names {
		writeRow(m.row(n), 2)
	}
	b.WriteString(`</table:table></office:spreadsheet></office:body></office:document-content>`)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(b.String()))
	_ = w.Close()
	return buf.Bytes()
}

// Member is one file inside a fixture archive.
type Member struct {
	Name    string
	Content []byte
}

// Archive zips members in order.
func Archive(members ...Member) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		fw, _ := w.Create(m.Name)
		_, _ = fw.Write(m.Content)
	}
	_ = w.Close()
	return buf.Bytes()
}
