package reservation

import (
	"errors"
	"strings"
	"time"

	"github.com/salas/salas/internal/validation"
	"github.com/salas/salas/pkg/room"
)

const (
	maxSubjectLength = 200
	maxNameLength    = 100
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrScheduleClosed means the room's schedule does not cover the candidate window.
	ErrScheduleClosed = errors.New("room is not available at the requested time")
	// ErrReservationOverlap means an active reservation already occupies part of the window.
	ErrReservationOverlap = errors.New("time window overlaps an existing reservation")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrFinalized          = errors.New("reservation is in a terminal state")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ParseStatus maps a client-provided string to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// OccupiesTime reports whether the status counts for conflict detection.
// Cancelled and completed reservations are inert.
func (s Status) OccupiesTime() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no transition is defined out of the status.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransitionTo encodes the lifecycle:
// pending -> confirmed -> completed, pending|confirmed -> cancelled.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusConfirmed || target == StatusCancelled
	case StatusConfirmed:
		return target == StatusCompleted || target == StatusCancelled
	default:
		return false
	}
}

// Participant attends a reservation. Internal participants carry an integer
// code and a role; external ones the enterprise they represent.
type Participant struct {
	Internal   bool
	Code       int
	Role       string
	Enterprise string
	Name       string
	Email      string
	Phone      string
}

type Reservation struct {
	Id           int
	Uid          string
	Subject      string
	Date         time.Time
	StartTime    int
	EndTime      int
	RoomUid      string
	Participants []Participant
	Status       Status
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the reservation's own invariants. Schedule admissibility
// and overlaps are checked separately against storage.
func (r Reservation) Validate() *validation.Result {
	result := &validation.Result{}

	subject := strings.TrimSpace(r.Subject)
	if subject == "" {
		result.Add("subject", "reservation subject is required")
	} else if len(subject) > maxSubjectLength {
		result.Addf("subject", "subject cannot exceed %d characters", maxSubjectLength)
	}

	if r.Date.IsZero() {
		result.Add("date", "reservation date is required")
	}

	if r.StartTime < 0 || r.StartTime > room.MinutesPerDay {
		result.Add("startTime", "start time must be minutes from midnight (0-1440)")
	}
	if r.EndTime < 0 || r.EndTime > room.MinutesPerDay {
		result.Add("endTime", "end time must be minutes from midnight (0-1440)")
	} else if r.EndTime <= r.StartTime {
		result.Add("endTime", "end time must be after start time")
	}

	if r.RoomUid == "" {
		result.Add("roomId", "room is required")
	}

	if len(r.Participants) == 0 {
		result.Add("participants", "at least one participant is required")
	}
	for _, participant := range r.Participants {
		participant.validate(result)
	}

	if strings.TrimSpace(r.CreatedBy) == "" {
		result.Add("createdBy", "createdBy is required")
	}

	return result
}

func (p Participant) validate(result *validation.Result) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		result.Add("participants", "participant name is required")
	} else if len(name) > maxNameLength {
		result.Addf("participants", "participant name cannot exceed %d characters", maxNameLength)
	}

	if !validation.ValidEmail(p.Email) {
		result.Addf("participants", "invalid email address %q", p.Email)
	}

	if p.Internal {
		if p.Code == 0 {
			result.Add("participants", "internal participants require a code")
		}
		if strings.TrimSpace(p.Role) == "" {
			result.Add("participants", "internal participants require a role")
		}
	} else {
		if strings.TrimSpace(p.Enterprise) == "" {
			result.Add("participants", "external participants require an enterprise")
		}
	}
}

// Overlaps applies the half-open interval rule to two windows on the same
// room and date: [s1, e1) and [s2, e2) overlap iff s1 < e2 && e1 > s2.
func Overlaps(start1, end1, start2, end2 int) bool {
	return start1 < end2 && end1 > start2
}
