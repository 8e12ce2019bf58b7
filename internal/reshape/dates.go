package reshape

import (
	"sort"
	"strings"
	"time"
)

// dayFirstLayouts are tried in order. Four-digit years come before two-digit ones so
// "05/03/2024" is not read as year 20.
var dayFirstLayouts = []string{
	"2/1/2006", "2-1-2006", "2.1.2006",
	"2006-1-2", "2006/1/2",
	"2/1/06", "2-1-06", "2.1.06",
	"2 Jan 2006", "2-Jan-2006", "2 January 2006", "2-Jan-06",
}

// parseDayFirst parses a date string with the day before the month.
func parseDayFirst(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortDates orders dates chronologically using day-first parsing. Unparseable dates
// go last in lexical order.
func sortDates(dates []string) {
	type key struct {
		t  time.Time
		ok bool
	}
	keys := make(map[string]key, len(dates))
	for _, d := range dates {
		t, ok := parseDayFirst(d)
		keys[d] = key{t, ok}
	}
	sort.SliceStable(dates, func(i, j int) bool {
		a, b := keys[dates[i]], keys[dates[j]]
		switch {
		case a.ok && b.ok:
			if !a.t.Equal(b.t) {
				return a.t.Before(b.t)
			}
			return dates[i] < dates[j]
		case a.ok != b.ok:
			return a.ok
		default:
			return dates[i] < dates[j]
		}
	})
}
