package room

import (
	"time"

	"github.com/salas/salas/internal/utils"
)

// AvailableAt decides whether the room is open for the candidate window
// [startMinutes, endMinutes) on the given date.
//
// An exception matching the calendar date is authoritative and replaces the
// weekly rule entirely, in both directions: it can open a day the weekly rule
// closes and close a day the weekly rule opens. Without an exception, the
// weekly window for the date's weekday applies; a weekday with no window means
// the room is closed that day.
func (r Room) AvailableAt(date time.Time, startMinutes, endMinutes int) bool {
	if exception, ok := r.exceptionFor(date); ok {
		return startMinutes >= exception.Open && endMinutes <= exception.Close
	}

	window, ok := r.windowFor(date.Weekday())
	if !ok {
		return false
	}
	return startMinutes >= window.Open && endMinutes <= window.Close
}

// exceptionFor returns the first exception matching the calendar date.
// Duplicate dates are rejected at write time; first match covers legacy data.
func (r Room) exceptionFor(date time.Time) (ScheduleException, bool) {
	for _, exception := range r.Exceptions {
		if utils.SameDay(exception.Date, date) {
			return exception, true
		}
	}
	return ScheduleException{}, false
}

func (r Room) windowFor(day time.Weekday) (AvailabilityWindow, bool) {
	for _, window := range r.Availability {
		if window.Day == day {
			return window, true
		}
	}
	return AvailabilityWindow{}, false
}
