package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, time.March, 3, hh, mm, ss, 0, time.UTC)
}

func TestDerive_windowBoundaries(t *testing.T) {
	p := DefaultPolicy()
	in := Input{TimeSlot: "09:00-09:50", Date: at(0, 0, 0)}

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{name: "before start", now: at(8, 59, 0), want: StatusPending},
		{name: "at start", now: at(9, 0, 0), want: StatusWindowOpen},
		{name: "at scheduled end", now: at(9, 50, 0), want: StatusWindowOpen},
		{name: "last second of grace", now: at(10, 20, 0), want: StatusWindowOpen},
		{name: "after grace", now: at(10, 20, 1), want: StatusMissed},
		{name: "evening", now: at(18, 0, 0), want: StatusMissed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(in, tt.now, p).Status)
		})
	}
}

func TestDerive_followsClockWithoutDatedFacts(t *testing.T) {
	p := DefaultPolicy()
	in := Input{TimeSlot: "09:00-09:50", Date: at(0, 0, 0)}

	// A class marked last week starts out pending again this week.
	assert.Equal(t, StatusPending, Derive(in, at(8, 0, 0), p).Status)
	assert.Equal(t, StatusWindowOpen, Derive(in, at(9, 10, 0), p).Status)
	assert.Equal(t, StatusMissed, Derive(in, at(12, 0, 0), p).Status)

	in.RecordStatus = StatusTaken
	assert.Equal(t, StatusTaken, Derive(in, at(12, 0, 0), p).Status)
}

func TestDerive_decisionOrder(t *testing.T) {
	p := DefaultPolicy()
	day := at(0, 0, 0)
	late := at(12, 0, 0)
	early := at(8, 0, 0)

	tests := []struct {
		name string
		in   Input
		now  time.Time
		want Status
	}{
		{
			name: "taken record beats everything",
			in:   Input{TimeSlot: "09:00-09:50", Date: day, RecordStatus: StatusTaken, HandedOver: true},
			now:  late, want: StatusTaken,
		},
		{
			name: "local marked hint",
			in:   Input{TimeSlot: "09:00-09:50", Date: day, Marked: true},
			now:  late, want: StatusTaken,
		},
		{
			name: "absent record is kept",
			in:   Input{TimeSlot: "09:00-09:50", Date: day, RecordStatus: StatusAbsent},
			now:  early, want: StatusAbsent,
		},
		{
			name: "handed over",
			in:   Input{TimeSlot: "09:00-09:50", Date: day, HandedOver: true},
			now:  late, want: StatusHandedOver,
		},
		{
			name: "substitute view",
			in:   Input{TimeSlot: "09:00-09:50", Date: day, Handover: true},
			now:  late, want: StatusHandover,
		},
		{
			name: "missed record inside the window",
			in:   Input{TimeSlot: "09:00-09:50", Date: day, RecordStatus: StatusMissed},
			now:  at(9, 10, 0), want: StatusMissed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.in, tt.now, p).Status)
		})
	}
}

func TestDerive_deterministic(t *testing.T) {
	p := DefaultPolicy()
	in := Input{TimeSlot: "2:00 PM - 2:50 PM", Date: at(0, 0, 0), Handover: false}
	now := at(14, 30, 0)

	first := Derive(in, now, p)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Derive(in, now, p))
	}
	assert.Equal(t, StatusWindowOpen, first.Status)
}

func TestDerive_otherDayAndLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	p := DefaultPolicy()
	p.Location = kolkata

	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, kolkata)
	// 03:45 UTC is 09:15 in Kolkata.
	now := time.Date(2025, time.March, 3, 3, 45, 0, 0, time.UTC)
	assert.Equal(t, StatusWindowOpen, Derive(Input{TimeSlot: "09:00-09:50", Date: day}, now, p).Status)

	tomorrow := day.AddDate(0, 0, 1)
	assert.Equal(t, StatusPending, Derive(Input{TimeSlot: "09:00-09:50", Date: tomorrow}, now, p).Status)
}

func TestWindowOpen(t *testing.T) {
	p := DefaultPolicy()
	p.GracePeriod = 20 * time.Minute
	day := at(0, 0, 0)

	assert.True(t, WindowOpen("09:00-09:50", day, at(10, 10, 0), p))
	assert.False(t, WindowOpen("09:00-09:50", day, at(10, 10, 1), p))
	assert.False(t, WindowOpen("09:00-09:50", day, at(8, 59, 59), p))
}
