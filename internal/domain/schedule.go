package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimeWindow filters appointments by start time. Either bound may be nil,
// meaning unbounded on that side. Both bounds are inclusive.
type TimeWindow struct {
	From *time.Time
	To   *time.Time
}

func (w TimeWindow) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// TimeSpan is an occupied interval on an instructor's calendar.
type TimeSpan struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// SlotTaken reports whether an appointment with the candidate status may not
// be booked at start because another scheduled appointment of the same
// instructor already starts at that exact instant. The rule is equality on
// the start instant, not interval overlap: back-to-back or overlapping
// appointments with different starts do not collide.
func SlotTaken(start time.Time, candidate AppointmentStatus, scheduled []Appointment, exclude uuid.UUID) bool {
	if candidate != StatusScheduled {
		return false
	}
	for _, a := range scheduled {
		if a.ID == exclude {
			continue
		}
		if a.Status != StatusScheduled {
			continue
		}
		if a.StartTime.Equal(start) {
			return true
		}
	}
	return false
}

// DayBounds returns the inclusive bounds of the calendar day containing t in
// loc: 00:00:00.000 through 23:59:59.999. The end is anchored to the wall
// clock rather than derived from the start, so DST transition days keep
// their local bounds.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999000000, loc)
	return start, end
}

// OccupiedSpans maps scheduled appointments to their time spans, ordered by
// start time ascending. Always returns a non-nil slice.
func OccupiedSpans(appts []Appointment) []TimeSpan {
	spans := make([]TimeSpan, 0, len(appts))
	for _, a := range appts {
		spans = append(spans, TimeSpan{StartTime: a.StartTime, EndTime: a.EndTime})
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].StartTime.Before(spans[j].StartTime)
	})
	return spans
}
