package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func hm(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func TestParseSlot(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		raw          string
		start, end   time.Duration
		wantFallback bool
	}{
		{raw: "09:00-09:50", start: hm(9, 0), end: hm(9, 50)},
		{raw: "09:00 - 09:50", start: hm(9, 0), end: hm(9, 50)},
		{raw: "9:00 – 9:50", start: hm(9, 0), end: hm(9, 50)},
		{raw: "10:00—11:30", start: hm(10, 0), end: hm(11, 30)},
		{raw: "14:00 to 15:00", start: hm(14, 0), end: hm(15, 0)},
		{raw: "2:00 PM - 2:50 PM", start: hm(14, 0), end: hm(14, 50)},
		{raw: "9:00-9:50 AM", start: hm(9, 0), end: hm(9, 50)},
		{raw: "11:00-1:00 PM", start: hm(11, 0), end: hm(13, 0)},
		{raw: "11:00-1:00", start: hm(11, 0), end: hm(13, 0)},
		{raw: "12:00 p.m. - 12:45 p.m.", start: hm(12, 0), end: hm(12, 45)},
		{raw: "2.30pm-3.20pm", start: hm(14, 30), end: hm(15, 20)},
		{raw: "10:00", start: hm(10, 0), end: hm(11, 0)},
		{raw: "10:00-", start: hm(10, 0), end: hm(11, 0)},
		{raw: "", start: hm(9, 0), end: hm(10, 0), wantFallback: true},
		{raw: "morning", start: hm(9, 0), end: hm(10, 0), wantFallback: true},
		{raw: "25:00-26:00", start: hm(9, 0), end: hm(10, 0), wantFallback: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseSlot(tt.raw, p)
			assert.Equal(t, tt.start, got.Start, "start")
			assert.Equal(t, tt.end, got.End, "end")
			assert.Equal(t, tt.wantFallback, got.Fallback, "fallback")
		})
	}
}

func TestSlot_Overlaps(t *testing.T) {
	p := DefaultPolicy()
	a := ParseSlot("09:00-09:50", p)

	assert.True(t, a.Overlaps(ParseSlot("09:00-09:50", p)))
	assert.True(t, a.Overlaps(ParseSlot("9:30 AM - 10:30 AM", p)))
	assert.False(t, a.Overlaps(ParseSlot("09:50-10:40", p)))
	assert.False(t, a.Overlaps(ParseSlot("08:00-09:00", p)))
}

func TestMatchesDay(t *testing.T) {
	tests := []struct {
		day  string
		wd   time.Weekday
		want bool
	}{
		{"Monday", time.Monday, true},
		{"monday", time.Monday, true},
		{"MONDAY", time.Monday, true},
		{"Mon", time.Monday, true},
		{"mon.", time.Monday, true},
		{"Tues", time.Tuesday, true},
		{"Thur", time.Thursday, true},
		{"Mo", time.Monday, false},
		{"Monday", time.Tuesday, false},
		{"", time.Sunday, false},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesDay(tt.day, tt.wd))
		})
	}

	wd, ok := ParseDay("sat")
	assert.True(t, ok)
	assert.Equal(t, time.Saturday, wd)
	_, ok = ParseDay("someday")
	assert.False(t, ok)
}
