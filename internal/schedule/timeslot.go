package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Slot is a parsed time-slot string, as offsets from midnight.
type Slot struct {
	Raw      string
	Start    time.Duration
	End      time.Duration
	Fallback bool // the string could not be read; Start/End come from the policy
}

var dashReplacer = strings.NewReplacer("–", "-", "—", "-", "−", "-", " to ", "-", " TO ", "-", " To ", "-")

// ParseSlot reads strings such as "09:00-09:50", "9:00 – 9:50 AM",
// "2.30pm-3.20pm" or a lone "10:00". It never fails: unreadable input
// falls back to the policy's start time and default duration.
func ParseSlot(raw string, p Policy) Slot {
	slot := Slot{Raw: raw}
	s := dashReplacer.Replace(strings.TrimSpace(raw))
	parts := strings.SplitN(s, "-", 2)

	start, startMer, startOK := parseClock(parts[0])
	if !startOK {
		slot.Start = p.FallbackStart
		slot.End = p.FallbackStart + p.DefaultDuration
		slot.Fallback = true
		return slot
	}
	if len(parts) == 1 {
		slot.Start = start
		slot.End = start + p.DefaultDuration
		return slot
	}

	end, endMer, endOK := parseClock(parts[1])
	if !endOK {
		slot.Start = start
		slot.End = start + p.DefaultDuration
		return slot
	}
	// "9:00-9:50 AM": the first half inherits the second half's meridiem.
	if startMer == "" && endMer != "" {
		if adj, ok := applyMeridiem(start, endMer); ok && adj < end {
			start = adj
		}
	}
	// "11:00-1:00" written on a 12-hour clock.
	if end <= start && endMer == "" && end < 12*time.Hour && end+12*time.Hour > start {
		end += 12 * time.Hour
	}
	if end <= start {
		end = start + p.DefaultDuration
	}
	slot.Start, slot.End = start, end
	return slot
}

// Overlaps reports whether two slots share any minute.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start < o.End && o.Start < s.End
}

// Window returns when the class opens and when the marking window closes on
// the given day.
func (s Slot) Window(day time.Time, p Policy) (opens, closes time.Time) {
	midnight := p.Day(day)
	return midnight.Add(s.Start), midnight.Add(s.End + p.GracePeriod)
}

// parseClock reads "9", "09:05", "9.05", "9:05pm", "9:05 a.m.". The returned
// meridiem is "am", "pm" or "".
func parseClock(s string) (time.Duration, string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".m.", "m")
	s = strings.ReplaceAll(s, " ", "")

	mer := ""
	switch {
	case strings.HasSuffix(s, "am"):
		mer, s = "am", strings.TrimSuffix(s, "am")
	case strings.HasSuffix(s, "pm"):
		mer, s = "pm", strings.TrimSuffix(s, "pm")
	}
	if s == "" {
		return 0, "", false
	}

	hh, mm := s, "0"
	if i := strings.IndexAny(s, ":."); i >= 0 {
		hh, mm = s[:i], s[i+1:]
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, "", false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, "", false
	}
	d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute
	if mer != "" {
		adj, ok := applyMeridiem(d, mer)
		if !ok {
			return 0, "", false
		}
		d = adj
	}
	return d, mer, true
}

func applyMeridiem(d time.Duration, mer string) (time.Duration, bool) {
	hour := int(d / time.Hour)
	rest := d % time.Hour
	if hour < 1 || hour > 12 {
		return 0, false
	}
	switch mer {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 12 {
			hour += 12
		}
	}
	return time.Duration(hour)*time.Hour + rest, true
}
