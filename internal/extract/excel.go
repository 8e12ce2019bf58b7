package extract

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/hyperjump/jikan/internal/models"
	"github.com/xuri/excelize/v2"
)

// extractExcel reads the header row and data rows of one sheet. Header cells are read
// formatted; data cells are read raw and typed by the stored cell type, so a number
// stored as text stays text until coerced.
func extractExcel(content []byte, sheet string) ([]string, [][]models.Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil, fmt.Errorf("sheet %q not found", sheet)
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	header := make([]string, len(raw[0]))
	for c := range raw[0] {
		axis, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return nil, nil, err
		}
		v, err := f.GetCellValue(sheet, axis)
		if err != nil {
			return nil, nil, fmt.Errorf("header cell %s: %w", axis, err)
		}
		header[c] = v
	}

	rows := make([][]models.Cell, 0, len(raw)-1)
	for r, row := range raw[1:] {
		cells := make([]models.Cell, len(row))
		for c, v := range row {
			if v == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, nil, err
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, nil, fmt.Errorf("cell type %s: %w", axis, err)
			}
			cells[c] = excelCell(v, typ)
		}
		rows = append(rows, cells)
	}
	return header, rows, nil
}

func excelCell(raw string, typ excelize.CellType) models.Cell {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return models.Number(v)
		}
	}
	return models.Text(raw)
}
