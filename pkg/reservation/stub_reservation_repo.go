package reservation

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/salas/salas/internal/utils"
	"github.com/salas/salas/pkg/room"
)

// StubRepository is an in-memory Repository used by service tests. Rooms
// must be seeded with AddRoom before they can be booked.
type StubRepository struct {
	rooms        map[string]*room.Room
	reservations map[string]*Reservation
	links        map[int]map[int]bool
	nextId       int

	// RoomLocks records GetRoomForBooking calls in order.
	RoomLocks []string
}

func NewStubRepository() *StubRepository {
	stub := &StubRepository{}
	stub.Cleanup()
	return stub
}

func (s *StubRepository) Cleanup() {
	s.rooms = make(map[string]*room.Room)
	s.reservations = make(map[string]*Reservation)
	s.links = make(map[int]map[int]bool)
	s.nextId = 0
	s.RoomLocks = nil
}

func (s *StubRepository) AddRoom(added room.Room) {
	stored := added
	s.rooms[added.Uid] = &stored
}

// Linked reports whether the room's back-reference contains the reservation.
func (s *StubRepository) Linked(roomId, reservationId int) bool {
	return s.links[roomId][reservationId]
}

func (s *StubRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(s)
}

func (s *StubRepository) GetRoomForBooking(ctx context.Context, roomUid string) (*room.Room, error) {
	s.RoomLocks = append(s.RoomLocks, roomUid)
	booked, ok := s.rooms[roomUid]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	copied := *booked
	return &copied, nil
}

func (s *StubRepository) roomId(roomUid string) int {
	if booked, ok := s.rooms[roomUid]; ok {
		return booked.Id
	}
	return 0
}

func (s *StubRepository) HasOverlap(ctx context.Context, roomId int, date time.Time, start, end, excludeId int) (bool, error) {
	for _, reservation := range s.reservations {
		if reservation.Id == excludeId || !reservation.Status.OccupiesTime() {
			continue
		}
		if s.roomId(reservation.RoomUid) != roomId || !utils.SameDay(reservation.Date, date) {
			continue
		}
		if Overlaps(reservation.StartTime, reservation.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *StubRepository) Store(ctx context.Context, reservation Reservation, roomId int) (Reservation, error) {
	s.nextId++
	reservation.Id = s.nextId
	reservation.Uid = uuid.New().String()
	stored := reservation
	s.reservations[reservation.Uid] = &stored
	return reservation, nil
}

func (s *StubRepository) LinkToRoom(ctx context.Context, roomId, reservationId int) error {
	if s.links[roomId] == nil {
		s.links[roomId] = make(map[int]bool)
	}
	s.links[roomId][reservationId] = true
	return nil
}

func (s *StubRepository) UnlinkFromRoom(ctx context.Context, roomId, reservationId int) error {
	delete(s.links[roomId], reservationId)
	return nil
}

func (s *StubRepository) GetByUid(ctx context.Context, uid string) (*Reservation, error) {
	reservation, ok := s.reservations[uid]
	if !ok {
		return nil, ErrReservationNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (s *StubRepository) List(ctx context.Context, filter ListFilter) ([]Reservation, int, error) {
	matched := make([]Reservation, 0, len(s.reservations))
	for _, reservation := range s.reservations {
		if filter.RoomUid != "" && reservation.RoomUid != filter.RoomUid {
			continue
		}
		if !filter.Date.IsZero() && !utils.SameDay(reservation.Date, filter.Date) {
			continue
		}
		if filter.Status != "" && reservation.Status != filter.Status {
			continue
		}
		matched = append(matched, *reservation)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		if matched[i].StartTime != matched[j].StartTime {
			return matched[i].StartTime < matched[j].StartTime
		}
		return matched[i].Id < matched[j].Id
	})

	total := len(matched)
	if filter.Offset >= total {
		return []Reservation{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (s *StubRepository) Update(ctx context.Context, reservation Reservation, roomId int) error {
	for uid, stored := range s.reservations {
		if stored.Id == reservation.Id {
			reservation.Uid = uid
			reservation.Status = stored.Status
			copied := reservation
			s.reservations[uid] = &copied
			return nil
		}
	}
	return ErrReservationNotFound
}

func (s *StubRepository) UpdateStatus(ctx context.Context, id int, status Status) error {
	for _, reservation := range s.reservations {
		if reservation.Id == id {
			reservation.Status = status
			return nil
		}
	}
	return ErrReservationNotFound
}

func (s *StubRepository) Delete(ctx context.Context, id int) error {
	for uid, reservation := range s.reservations {
		if reservation.Id == id {
			delete(s.reservations, uid)
			return nil
		}
	}
	return ErrReservationNotFound
}

func (s *StubRepository) FindConfirmedPastEnd(ctx context.Context, now time.Time) ([]int, error) {
	var ids []int
	for _, reservation := range s.reservations {
		if reservation.Status != StatusConfirmed {
			continue
		}
		endsAt := reservation.Date.Add(time.Duration(reservation.EndTime) * time.Minute)
		if endsAt.Before(now) {
			ids = append(ids, reservation.Id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *StubRepository) MarkCompleted(ctx context.Context, id int) (bool, error) {
	for _, reservation := range s.reservations {
		if reservation.Id == id {
			if reservation.Status != StatusConfirmed {
				return false, nil
			}
			reservation.Status = StatusCompleted
			return true, nil
		}
	}
	return false, nil
}
