package schedule

import (
	"strings"
	"time"
)

// MatchesDay reports whether a routine entry's day string names wd. Full
// names, three-letter abbreviations and longer prefixes ("Tues", "Thur")
// are accepted in any case.
func MatchesDay(day string, wd time.Weekday) bool {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(day)), ".")
	if d == "" {
		return false
	}
	full := strings.ToLower(wd.String())
	if d == full {
		return true
	}
	if d == full[:3] {
		return true
	}
	return len(d) >= 3 && strings.HasPrefix(full, d)
}

// ParseDay resolves a day string to its weekday.
func ParseDay(day string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if MatchesDay(day, wd) {
			return wd, true
		}
	}
	return 0, false
}
