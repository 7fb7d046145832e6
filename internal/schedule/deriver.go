package schedule

import "time"

// Input is everything known about one class occurrence. The status stored on
// a routine entry recurs every week, so it is not an input: only facts scoped
// to the date can fix a status, everything else follows the clock.
type Input struct {
	TimeSlot     string
	Date         time.Time // any instant on the class day
	RecordStatus Status    // attendance record status, empty when none exists
	Marked       bool      // caller already knows attendance was submitted
	HandedOver   bool      // this faculty gave the class to a substitute
	Handover     bool      // this faculty is the substitute for the class
}

// Result is the derived status together with the parsed slot and its
// marking window.
type Result struct {
	Status Status
	Slot   Slot
	Opens  time.Time
	Closes time.Time
}

// Derive computes the display status of a class at now. It is a pure
// function of its arguments; the first matching rule wins.
func Derive(in Input, now time.Time, p Policy) Result {
	slot := ParseSlot(in.TimeSlot, p)
	opens, closes := slot.Window(in.Date, p)
	res := Result{Slot: slot, Opens: opens, Closes: closes}

	switch {
	case in.RecordStatus == StatusTaken || in.Marked:
		res.Status = StatusTaken
	case in.RecordStatus.Sticky():
		res.Status = in.RecordStatus
	case in.HandedOver:
		res.Status = StatusHandedOver
	case in.Handover:
		res.Status = StatusHandover
	case in.RecordStatus == StatusMissed || now.After(closes):
		res.Status = StatusMissed
	case !now.Before(opens):
		res.Status = StatusWindowOpen
	default:
		res.Status = StatusPending
	}
	return res
}

// WindowOpen reports whether attendance for the slot on day can be marked at
// now, independent of any recorded facts.
func WindowOpen(timeSlot string, day, now time.Time, p Policy) bool {
	opens, closes := ParseSlot(timeSlot, p).Window(day, p)
	return !now.Before(opens) && !now.After(closes)
}
