// Package extract loads spreadsheet files and archives into in-memory source tables.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/jikan/internal/models"
)

// Extractor loads tabular sources from spreadsheet bytes.
type Extractor struct {
	sheetName      string
	maxMemberBytes int64
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithSheet selects the sheet to read by name. Empty means the first sheet.
func WithSheet(name string) ExtractorOption {
	return func(e *Extractor) { e.sheetName = name }
}

// WithMaxMemberBytes limits the uncompressed size of a single archive member.
func WithMaxMemberBytes(n int64) ExtractorOption {
	return func(e *Extractor) { e.maxMemberBytes = n }
}

const defaultMaxMemberBytes = 256 << 20

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{maxMemberBytes: defaultMaxMemberBytes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether name has an extension the extractor can load,
// archives included.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".ods", ".csv", ".zip":
		return true
	}
	return false
}

// Load reads the file at path and returns its sources. A spreadsheet yields one source;
// a .zip archive yields one source per supported member. Read failures are reported on
// the returned source rather than as an error so callers can keep going.
func (e *Extractor) Load(path string) []models.Source {
	content, err := os.ReadFile(path)
	if err != nil {
		return []models.Source{{
			Name: filepath.Base(path),
			Err:  fmt.Errorf("%w: read file: %v", models.ErrSourceUnreadable, err),
		}}
	}
	return e.LoadBytes(filepath.Base(path), content)
}

// LoadBytes returns the sources contained in content, dispatching on the extension of name.
func (e *Extractor) LoadBytes(name string, content []byte) []models.Source {
	if strings.ToLower(filepath.Ext(name)) == ".zip" {
		return e.expandArchive(name, content)
	}
	table, err := e.Table(name, content)
	return []models.Source{{Name: name, Table: table, Err: err}}
}

// Table parses a single spreadsheet. ext is taken from name and must include a supported
// spreadsheet extension. Errors wrap models.ErrSourceUnreadable.
func (e *Extractor) Table(name string, content []byte) (*models.SourceTable, error) {
	var (
		header []string
		rows   [][]models.Cell
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		header, rows, err = extractExcel(content, e.sheetName)
	case ".ods":
		header, rows, err = extractODS(content, e.sheetName)
	case ".csv":
		header, rows, err = extractCSV(content)
	default:
		err = fmt.Errorf("unsupported format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnreadable, name, err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s: no header row", models.ErrSourceUnreadable, name)
	}
	return &models.SourceTable{Name: name, Header: header, Rows: rows}, nil
}
