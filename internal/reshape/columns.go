package reshape

import (
	"strings"
	"time"
)

// measurementColumn is a source column whose header encodes a date and a time.
type measurementColumn struct {
	index int
	date  string
	time  string
}

// splitHeader splits "<date>, <time>" on the first comma. ok is false when the header
// has no comma.
func splitHeader(header string) (date, clock string, ok bool) {
	date, clock, ok = strings.Cut(header, ",")
	if !ok {
		return strings.TrimSpace(header), "", false
	}
	return strings.TrimSpace(date), normalizeTime(strings.TrimSpace(clock)), true
}

// isPlaceholder reports headers produced by blank or merged header cells.
func isPlaceholder(header string) bool {
	return header == "" || strings.Contains(header, "Unnamed")
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04:05 PM"}

// normalizeTime rewrites clock times to HH:MM so "0:00" and "00:00:00" land in the
// "00:00" slot. Anything else is returned unchanged and matches no slot.
func normalizeTime(s string) string {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return s
}
