// Package models defines core data structures for source tables, reshaped output, and warnings.
package models

import (
	"math"
	"strconv"
	"strings"
)

// CellKind tags the variant held by a Cell.
type CellKind int

const (
	// CellMissing is an empty or absent cell.
	CellMissing CellKind = iota
	// CellNumber is a cell stored as a number in the source.
	CellNumber
	// CellText is a cell stored as text in the source.
	CellText
)

// Cell is one value of a source table: a number, a piece of text, or nothing.
type Cell struct {
	Kind CellKind
	Num  float64
	Text string
}

// Number returns a numeric cell.
func Number(v float64) Cell {
	return Cell{Kind: CellNumber, Num: v}
}

// Text returns a text cell.
func Text(s string) Cell {
	return Cell{Kind: CellText, Text: s}
}

// Missing returns an empty cell.
func Missing() Cell {
	return Cell{}
}

// Float coerces the cell to a number. Numbers are returned as-is, text is parsed after
// trimming, and missing cells are 0. ok is false only for text that does not parse to a
// finite number; the returned value is then 0.
func (c Cell) Float() (v float64, ok bool) {
	switch c.Kind {
	case CellNumber:
		return c.Num, true
	case CellText:
		s := strings.TrimSpace(c.Text)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, true
	}
}

// String returns the cell as trimmed text. Numbers use the shortest representation,
// so 101 and " 101 " render the same.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellText:
		return strings.TrimSpace(c.Text)
	default:
		return ""
	}
}

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool {
	return c.Kind == CellMissing
}
