package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validReservation() Reservation {
	return Reservation{
		Subject:   "Comité de compras",
		Date:      time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		StartTime: 540,
		EndTime:   600,
		RoomUid:   "room-1",
		Participants: []Participant{
			{Internal: true, Code: 1021, Role: "Analista", Name: "Laura Pérez", Email: "laura@example.com"},
		},
		CreatedBy: "front-desk",
	}
}

func TestReservation_Validate(t *testing.T) {
	t.Run("should accept a valid reservation", func(t *testing.T) {
		assert.True(t, validReservation().Validate().Ok())
	})

	t.Run("should require a subject", func(t *testing.T) {
		reservation := validReservation()
		reservation.Subject = "   "
		assert.False(t, reservation.Validate().Ok())
	})

	t.Run("should reject an empty time window", func(t *testing.T) {
		reservation := validReservation()
		reservation.StartTime = 600
		reservation.EndTime = 600
		assert.False(t, reservation.Validate().Ok())
	})

	t.Run("should reject minutes outside the day", func(t *testing.T) {
		reservation := validReservation()
		reservation.EndTime = 1441
		assert.False(t, reservation.Validate().Ok())
	})

	t.Run("should require at least one participant", func(t *testing.T) {
		reservation := validReservation()
		reservation.Participants = nil
		assert.False(t, reservation.Validate().Ok())
	})

	t.Run("should require a code and role for internal participants", func(t *testing.T) {
		reservation := validReservation()
		reservation.Participants = []Participant{
			{Internal: true, Name: "Laura Pérez", Email: "laura@example.com"},
		}
		assert.False(t, reservation.Validate().Ok())
	})

	t.Run("should require an enterprise for external participants", func(t *testing.T) {
		reservation := validReservation()
		reservation.Participants = []Participant{
			{Internal: false, Name: "Carlos Ruiz", Email: "carlos@proveedor.com"},
		}
		assert.False(t, reservation.Validate().Ok())
	})

	t.Run("should reject a malformed participant email", func(t *testing.T) {
		reservation := validReservation()
		reservation.Participants[0].Email = "not-an-email"
		assert.False(t, reservation.Validate().Ok())
	})
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to pending", StatusConfirmed, StatusPending, false},
		{"cancelled to confirmed", StatusCancelled, StatusConfirmed, false},
		{"completed to cancelled", StatusCompleted, StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		start1, end1, start2, end2 int
		want                       bool
	}{
		{"identical windows", 540, 600, 540, 600, true},
		{"partial overlap", 540, 600, 570, 630, true},
		{"contained window", 540, 600, 550, 560, true},
		{"back to back is free", 540, 600, 600, 660, false},
		{"disjoint windows", 540, 600, 700, 760, false},
		{"one minute overlap", 540, 600, 599, 660, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.start1, tt.end1, tt.start2, tt.end2))
		})
	}
}
