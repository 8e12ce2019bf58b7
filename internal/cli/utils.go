// Package cli provides CLI output helpers for jikan.
package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/hyperjump/jikan/internal/batch"
	"github.com/hyperjump/jikan/internal/export"
	"github.com/hyperjump/jikan/internal/models"
	"github.com/hyperjump/jikan/pkg/utils"
)

const maxFailureLen = 200

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCSV is comma separated values.
	OutputCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputJSON, OutputCSV:
		return f, nil
	case "":
		return OutputText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
}

// WriteEntities writes a short name listing to w. Text output lists one name per line
// followed by any failed sources.
func WriteEntities(w io.Writer, res *batch.ListResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{models.ColumnShortName})
		for _, n := range res.ShortNames {
			_ = cw.Write([]string{n})
		}
		cw.Flush()
		return cw.Error()
	default:
		fmt.Fprintf(w, "%d short name(s)\n", len(res.ShortNames))
		for _, n := range res.ShortNames {
			fmt.Fprintf(w, "  %s\n", n)
		}
		writeFailures(w, res.Failures)
		return nil
	}
}

// WriteTable writes a transformed table to w. Text output is an aligned grid followed by
// warnings and failures; CSV matches the downloadable file.
func WriteTable(w io.Writer, res *batch.Result, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCSV:
		return export.WriteCSV(w, res.Table)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		for i, c := range res.Table.Columns() {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw, "\t")
		for _, row := range res.Table.Rows {
			fmt.Fprint(tw, row.Time)
			for _, v := range row.Values {
				fmt.Fprintf(tw, "\t%s", strconv.FormatFloat(v, 'f', -1, 64))
			}
			fmt.Fprintf(tw, "\t%s\t%s\t\n", strconv.FormatFloat(row.GrandTotal, 'f', -1, 64), row.ShortName)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warn.Message)
		}
		writeFailures(w, res.Failures)
		return nil
	}
}

func writeFailures(w io.Writer, failures []*models.SourceError) {
	for _, f := range failures {
		fmt.Fprintf(w, "skipped: %s\n", utils.Truncate(f.Error(), maxFailureLen))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
