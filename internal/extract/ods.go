package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/jikan/internal/models"
)

// odsContentPath is the path to the main content inside an .ods zip (OpenDocument Spreadsheet).
const odsContentPath = "content.xml"

// extractODS reads one table of an .ods file. ODS is a ZIP containing content.xml.
func extractODS(content []byte, sheet string) ([]string, [][]models.Cell, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, nil, fmt.Errorf("extract ODS: not a zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("extract ODS: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return parseODSContent(rc, sheet)
	}
	return nil, nil, fmt.Errorf("extract ODS: %s not found", odsContentPath)
}

// odsCell accumulates one table:table-cell while it is being decoded.
type odsCell struct {
	valueType string
	value     string
	repeat    int
	paras     []string
	text      strings.Builder
	inPara    bool
}

func (c *odsCell) cell() models.Cell {
	switch c.valueType {
	case "float", "percentage", "currency":
		if v, err := strconv.ParseFloat(c.value, 64); err == nil {
			return models.Number(v)
		}
	}
	s := strings.Join(c.paras, "\n")
	if s == "" {
		return models.Missing()
	}
	return models.Text(s)
}

// odsRow collects the cells of one table:table-row. Runs of empty cells are held back
// and only materialized when a non-empty cell follows, so the trailing filler that
// spreadsheet apps write (number-columns-repeated="1024") costs nothing.
type odsRow struct {
	cells        []models.Cell
	pendingEmpty int
	repeat       int
}

func (r *odsRow) add(c models.Cell, repeat int) {
	if c.IsMissing() {
		r.pendingEmpty += repeat
		return
	}
	for ; r.pendingEmpty > 0; r.pendingEmpty-- {
		r.cells = append(r.cells, models.Missing())
	}
	for i := 0; i < repeat; i++ {
		r.cells = append(r.cells, c)
	}
}

// parseODSContent decodes content.xml and returns the header and data rows of the named
// table, or the first table when sheet is empty. Fully empty rows are dropped.
func parseODSContent(r io.Reader, sheet string) ([]string, [][]models.Cell, error) {
	dec := xml.NewDecoder(r)
	var (
		inTable bool
		found   bool
		done    bool
		row     *odsRow
		cell    *odsCell
		rows    [][]models.Cell
	)
	for !done {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("extract ODS: decode content: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if !found && (sheet == "" || attr(t, "name") == sheet) {
					inTable, found = true, true
				}
			case "table-row":
				if inTable {
					row = &odsRow{repeat: atoiDefault(attr(t, "number-rows-repeated"), 1)}
				}
			case "table-cell", "covered-table-cell":
				if row != nil {
					cell = &odsCell{
						valueType: attr(t, "value-type"),
						value:     attr(t, "value"),
						repeat:    atoiDefault(attr(t, "number-columns-repeated"), 1),
					}
				}
			case "p", "h":
				if cell != nil {
					cell.inPara = true
					cell.text.Reset()
				}
			case "s":
				if cell != nil && cell.inPara {
					cell.text.WriteString(strings.Repeat(" ", atoiDefault(attr(t, "c"), 1)))
				}
			case "tab":
				if cell != nil && cell.inPara {
					cell.text.WriteByte('\t')
				}
			}
		case xml.CharData:
			if cell != nil && cell.inPara {
				cell.text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				if cell != nil && cell.inPara {
					cell.paras = append(cell.paras, cell.text.String())
					cell.inPara = false
				}
			case "table-cell", "covered-table-cell":
				if cell != nil && row != nil {
					row.add(cell.cell(), cell.repeat)
				}
				cell = nil
			case "table-row":
				if row != nil && len(row.cells) > 0 {
					for i := 0; i < row.repeat; i++ {
						rows = append(rows, append([]models.Cell(nil), row.cells...))
					}
				}
				row = nil
			case "table":
				if inTable {
					inTable = false
					done = true
				}
			}
		}
	}
	if !found {
		if sheet != "" {
			return nil, nil, fmt.Errorf("sheet %q not found", sheet)
		}
		return nil, nil, fmt.Errorf("extract ODS: no table found")
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = c.String()
	}
	return header, rows[1:], nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
