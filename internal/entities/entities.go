// Package entities lists the short names found in source tables.
package entities

import (
	"fmt"
	"strings"

	"github.com/hyperjump/jikan/internal/models"
)

// IdentifierColumn returns the index of the first column whose trimmed header equals label,
// compared case-insensitively. Errors wrap models.ErrMalformedSchema.
func IdentifierColumn(table *models.SourceTable, label string) (int, error) {
	want := strings.TrimSpace(label)
	for i, h := range table.Header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s: no %q column", models.ErrMalformedSchema, table.Name, want)
}

// Identifiers returns the normalized identifier of every data row, aligned with table.Rows.
// Rows without an identifier get "".
func Identifiers(table *models.SourceTable, col int) []string {
	ids := make([]string, len(table.Rows))
	for r := range table.Rows {
		ids[r] = table.Cell(r, col).String()
	}
	return ids
}

// List returns the distinct short names of table in order of first appearance.
// Values are trimmed and numbers use their shortest form; blanks are skipped.
func List(table *models.SourceTable, label string) ([]string, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil table", models.ErrSourceUnreadable)
	}
	col, err := IdentifierColumn(table, label)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(table.Rows))
	var names []string
	for _, id := range Identifiers(table, col) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		names = append(names, id)
	}
	return names, nil
}

// Union merges name lists, keeping the first occurrence of each name.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, n := range list {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// Filter returns the names containing query, case-insensitively. An empty query
// returns names unchanged.
func Filter(names []string, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return names
	}
	var out []string
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), q) {
			out = append(out, n)
		}
	}
	return out
}
