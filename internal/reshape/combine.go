package reshape

import "github.com/hyperjump/jikan/internal/models"

// Combine concatenates tables in argument order. Date columns are the chronological
// union of all tables' dates; a row gets 0 for dates its table did not have.
// Nil tables are skipped.
func Combine(tables ...*models.Table) *models.Table {
	seen := make(map[string]struct{})
	var dates []string
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, d := range t.Dates {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	sortDates(dates)
	index := make(map[string]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	out := &models.Table{Dates: dates}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, row := range t.Rows {
			values := make([]float64, len(dates))
			for i, d := range t.Dates {
				if i < len(row.Values) {
					values[index[d]] = row.Values[i]
				}
			}
			out.Rows = append(out.Rows, newRow(row.Time, values, row.ShortName, row.Source))
		}
	}
	return out
}
