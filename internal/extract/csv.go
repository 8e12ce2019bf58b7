package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/jikan/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractCSV reads a delimited text export. Every non-empty field is text; numeric
// coercion happens when measurement cells are read. Invalid UTF-8 sequences are
// replaced with the replacement character.
func extractCSV(content []byte) ([]string, [][]models.Cell, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = sniffDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	var rows [][]models.Cell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		cells := make([]models.Cell, len(record))
		for i, v := range record {
			if strings.TrimSpace(v) != "" {
				cells[i] = models.Text(v)
			}
		}
		rows = append(rows, cells)
	}
	return header, rows, nil
}

// sniffDelimiter picks ';' or '\t' over ',' when the first line has more of them outside
// quotes. Headers like "1/1/2024, 00:00" must be quoted in comma-separated files, so
// unquoted commas are a reliable signal.
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ',' || r == ';' || r == '\t'):
			counts[r]++
		}
	}
	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}
