package models

import (
	"encoding/json"
	"errors"
)

var (
	// ErrSourceUnreadable means a source could not be opened or parsed as a table.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrMalformedSchema means a source lacks the identifier column or usable measurement columns.
	ErrMalformedSchema = errors.New("malformed schema")
)

// SourceError records a fatal failure for one source in a multi-source run.
type SourceError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return e.Source
	}
	return e.Source + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error message alongside the source name.
func (e *SourceError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Source string `json:"source"`
		Error  string `json:"error"`
	}{Source: e.Source, Error: msg})
}
