package schedule

import (
	"time"
)

const DateLayout = "2006-01-02"

// Policy carries the clock rules shared by every view that derives a class
// status. There is exactly one grace period for the whole service.
type Policy struct {
	GracePeriod     time.Duration // how long after the scheduled end attendance can still be marked
	DefaultDuration time.Duration // class length when a slot only names a start time
	FallbackStart   time.Duration // start used for unparseable slots, offset from midnight
	Location        *time.Location
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		GracePeriod:     30 * time.Minute,
		DefaultDuration: time.Hour,
		FallbackStart:   9 * time.Hour,
		Location:        time.UTC,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Day returns local midnight of the day t falls on.
func (p Policy) Day(t time.Time) time.Time {
	t = t.In(p.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc())
}

// ParseDate reads a YYYY-MM-DD date in the policy location. An empty string
// means today.
func (p Policy) ParseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return p.Day(now), nil
	}
	return time.ParseInLocation(DateLayout, s, p.loc())
}

// FormatDate renders t as YYYY-MM-DD in the policy time zone.
func (p Policy) FormatDate(t time.Time) string {
	return t.In(p.loc()).Format(DateLayout)
}
