package room

import (
	"errors"
	"strings"
	"time"

	"github.com/salas/salas/internal/validation"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	// MinutesPerDay bounds every open/close value: minutes from midnight.
	MinutesPerDay = 1440
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrDuplicateName = errors.New("room name already in use")
)

// AvailabilityWindow is a recurring weekly open interval for a single weekday,
// expressed in minutes from midnight. A room has at most one window per weekday.
type AvailabilityWindow struct {
	Day   time.Weekday
	Open  int
	Close int
}

// ScheduleException overrides the weekly rule for one calendar date. The
// degenerate window open=close=0 marks the date as fully closed.
type ScheduleException struct {
	Date   time.Time
	Open   int
	Close  int
	Reason string
}

// Closed reports whether the exception marks the whole day unavailable.
func (e ScheduleException) Closed() bool {
	return e.Open == 0 && e.Close == 0
}

// ReservationRef is the non-authoritative back-reference a room keeps for each
// of its reservations. The reservation row itself is the source of truth.
type ReservationRef struct {
	Uid       string
	Date      time.Time
	StartTime int
	EndTime   int
	Status    string
}

type Room struct {
	Id           int
	Uid          string
	Name         string
	Description  string
	Capacity     int
	Availability []AvailabilityWindow
	Exceptions   []ScheduleException
	Reservations []ReservationRef
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks every stored invariant of a room before persistence.
func (r Room) Validate() *validation.Result {
	result := &validation.Result{}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		result.Add("name", "room name is required")
	} else if len(name) > maxNameLength {
		result.Addf("name", "room name cannot exceed %d characters", maxNameLength)
	}

	if len(r.Description) > maxDescriptionLength {
		result.Addf("description", "description cannot exceed %d characters", maxDescriptionLength)
	}

	if r.Capacity < 1 {
		result.Add("capacity", "capacity must be at least 1")
	}

	seenDays := make(map[time.Weekday]bool, len(r.Availability))
	for _, window := range r.Availability {
		if window.Day < time.Sunday || window.Day > time.Saturday {
			result.Add("availability", "day must be between 0 (Sunday) and 6 (Saturday)")
			continue
		}
		if seenDays[window.Day] {
			result.Addf("availability", "duplicate availability window for %s", window.Day)
		}
		seenDays[window.Day] = true
		if window.Open < 0 || window.Open > MinutesPerDay || window.Close < 0 || window.Close > MinutesPerDay {
			result.Add("availability", "open and close must be minutes from midnight (0-1440)")
			continue
		}
		if window.Close <= window.Open {
			result.Add("availability", "close time must be after open time")
		}
	}

	seenDates := make(map[string]bool, len(r.Exceptions))
	for _, exception := range r.Exceptions {
		if exception.Date.IsZero() {
			result.Add("exceptions", "exception date is required")
			continue
		}
		key := exception.Date.Format("2006-01-02")
		if seenDates[key] {
			result.Addf("exceptions", "duplicate exception for date %s", key)
		}
		seenDates[key] = true
		if exception.Open < 0 || exception.Open > MinutesPerDay || exception.Close < 0 || exception.Close > MinutesPerDay {
			result.Add("exceptions", "open and close must be minutes from midnight (0-1440)")
			continue
		}
		if exception.Close <= exception.Open && !exception.Closed() {
			result.Add("exceptions", "close time must be after open time")
		}
	}

	return result
}
