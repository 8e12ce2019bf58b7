package models

import "fmt"

// WarningKind classifies a recoverable condition.
type WarningKind string

const (
	// WarningEntityNotFound means a selected entity has no row in a source.
	WarningEntityNotFound WarningKind = "entity_not_found"
	// WarningCellParse summarizes measurement cells that were not numeric and counted as 0.
	WarningCellParse WarningKind = "cell_parse"
)

// Warning is a recoverable problem surfaced to the user without aborting a run.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Source    string      `json:"source"`
	ShortName string      `json:"short_name"`
	Count     int         `json:"count,omitempty"`
	Message   string      `json:"message"`
}

// NewEntityNotFound builds the warning for an entity missing from a source.
func NewEntityNotFound(source, name string) Warning {
	return Warning{
		Kind:      WarningEntityNotFound,
		Source:    source,
		ShortName: name,
		Message:   fmt.Sprintf("short name %q not found in %s", name, source),
	}
}

// NewCellParse builds the summary warning for unparseable cells of one entity.
func NewCellParse(source, name string, count int) Warning {
	return Warning{
		Kind:      WarningCellParse,
		Source:    source,
		ShortName: name,
		Count:     count,
		Message:   fmt.Sprintf("%d non-numeric value(s) for %q in %s counted as 0", count, name, source),
	}
}
