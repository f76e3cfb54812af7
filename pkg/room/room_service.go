package room

import (
	"context"
	"time"

	"github.com/salas/salas/internal/utils"
	"github.com/salas/salas/internal/validation"
)

// ListQuery is the client-facing listing request before normalization.
type ListQuery struct {
	Page        int
	PerPage     int
	Search      string
	MinCapacity int
	MaxCapacity int
}

// Patch carries a partial room update; nil fields keep their stored value.
type Patch struct {
	Name         *string
	Description  *string
	Capacity     *int
	Availability *[]AvailabilityWindow
	Exceptions   *[]ScheduleException
}

type Service interface {
	List(ctx context.Context, query ListQuery) ([]Room, int, error)
	Get(ctx context.Context, uid string, month int) (*Room, error)
	Create(ctx context.Context, room Room) (Room, error)
	Update(ctx context.Context, uid string, patch Patch) (*Room, error)
	Delete(ctx context.Context, uid string) (*Room, error)
}

type ServiceImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewService(repo Repository, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock}
}

func (s *ServiceImpl) List(ctx context.Context, query ListQuery) ([]Room, int, error) {
	result := &validation.Result{}
	if query.Page < 1 {
		result.Add("page", "page must be a positive integer")
	}
	if query.PerPage < 1 {
		result.Add("per_page", "per_page must be a positive integer")
	}
	if query.MinCapacity < 0 {
		result.Add("min_capacity", "min_capacity cannot be negative")
	}
	if query.MaxCapacity < 0 {
		result.Add("max_capacity", "max_capacity cannot be negative")
	}
	if err := result.AsError(); err != nil {
		return nil, 0, err
	}

	filter := ListFilter{
		Search:      query.Search,
		MinCapacity: query.MinCapacity,
		MaxCapacity: query.MaxCapacity,
		Offset:      (query.Page - 1) * query.PerPage,
		Limit:       query.PerPage,
	}
	return s.repo.List(ctx, filter)
}

// Get fetches a room. When month is 1-12, exceptions and reservation
// back-references are narrowed to that month of the current year. The
// projection is applied to the returned copy only; nothing is persisted.
func (s *ServiceImpl) Get(ctx context.Context, uid string, month int) (*Room, error) {
	if month < 0 || month > 12 {
		result := &validation.Result{}
		result.Add("month", "month must be between 1 and 12")
		return nil, result
	}

	room, err := s.repo.GetByUid(ctx, uid)
	if err != nil {
		return nil, err
	}
	if month == 0 {
		return room, nil
	}

	year := s.clock.Now().Year()
	projected := *room
	projected.Exceptions = filterExceptionsByMonth(room.Exceptions, year, time.Month(month))
	projected.Reservations = filterRefsByMonth(room.Reservations, year, time.Month(month))
	return &projected, nil
}

func filterExceptionsByMonth(exceptions []ScheduleException, year int, month time.Month) []ScheduleException {
	filtered := make([]ScheduleException, 0, len(exceptions))
	for _, exception := range exceptions {
		if exception.Date.Year() == year && exception.Date.Month() == month {
			filtered = append(filtered, exception)
		}
	}
	return filtered
}

func filterRefsByMonth(refs []ReservationRef, year int, month time.Month) []ReservationRef {
	filtered := make([]ReservationRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Date.Year() == year && ref.Date.Month() == month {
			filtered = append(filtered, ref)
		}
	}
	return filtered
}

func (s *ServiceImpl) Create(ctx context.Context, room Room) (Room, error) {
	if err := room.Validate().AsError(); err != nil {
		return Room{}, err
	}
	return s.repo.Store(ctx, room)
}

func (s *ServiceImpl) Update(ctx context.Context, uid string, patch Patch) (*Room, error) {
	var updated *Room
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		existing, err := repo.GetByUid(ctx, uid)
		if err != nil {
			return err
		}

		merged := *existing
		if patch.Name != nil {
			merged.Name = *patch.Name
		}
		if patch.Description != nil {
			merged.Description = *patch.Description
		}
		if patch.Capacity != nil {
			merged.Capacity = *patch.Capacity
		}
		if patch.Availability != nil {
			merged.Availability = *patch.Availability
		}
		if patch.Exceptions != nil {
			merged.Exceptions = *patch.Exceptions
		}

		if err := merged.Validate().AsError(); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, merged)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the room along with its schedule and reservations. The
// reservation rows cascade at the database level.
func (s *ServiceImpl) Delete(ctx context.Context, uid string) (*Room, error) {
	return s.repo.Delete(ctx, uid)
}
