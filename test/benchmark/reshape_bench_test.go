package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/jikan/internal/batch"
	"github.com/hyperjump/jikan/internal/models"
	"github.com/hyperjump/jikan/internal/reshape"
)

// monthTable builds a 31-day hourly export for n meters.
func monthTable(n int) *models.SourceTable {
	header := []string{"Short name", "Description"}
	for d := 1; d <= 31; d++ {
		for h := 0; h < 24; h++ {
			header = append(header, fmt.Sprintf("%d/1/2024, %02d:00", d, h))
		}
	}
	rows := make([][]models.Cell, n)
	for i := range rows {
		row := []models.Cell{models.Text(fmt.Sprintf("M%d", i)), models.Missing()}
		for c := 2; c < len(header); c++ {
			row = append(row, models.Number(float64(c)))
		}
		rows[i] = row
	}
	return &models.SourceTable{Name: "month.xlsx", Header: header, Rows: rows}
}

func BenchmarkReshape(b *testing.B) {
	table := monthTable(200)
	selected := []string{"M1", "M50", "M199"}
	r := reshape.New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := r.Reshape(table, selected); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTransformTwelveSources(b *testing.B) {
	table := monthTable(50)
	sources := make([]models.Source, 12)
	for i := range sources {
		sources[i] = models.Source{Name: fmt.Sprintf("m%02d.xlsx", i), Table: table}
	}
	proc := batch.NewProcessor(nil, batch.WithConcurrency(4))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := proc.Transform(ctx, sources, []string{"M1", "M2"}); err != nil {
			b.Fatal(err)
		}
	}
}
