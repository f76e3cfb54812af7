package reservation

import (
	"context"
	"time"

	"github.com/salas/salas/internal/auth"
	"github.com/salas/salas/internal/utils"
	"github.com/salas/salas/internal/validation"
	"github.com/salas/salas/pkg/room"
	log "github.com/sirupsen/logrus"
)

// Notifier is told about lifecycle events that participants care about.
// Implementations must not block the request path for long.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, reservation Reservation) error
	ReservationCancelled(ctx context.Context, reservation Reservation) error
}

// NoopNotifier discards every event. Used when mail is not configured.
type NoopNotifier struct{}

func (NoopNotifier) ReservationConfirmed(context.Context, Reservation) error { return nil }
func (NoopNotifier) ReservationCancelled(context.Context, Reservation) error { return nil }

type ListQuery struct {
	RoomUid string
	Date    time.Time
	Status  Status
	Page    int
	PerPage int
}

// Patch carries the mutable reservation fields. Nil pointers leave the
// current value untouched.
type Patch struct {
	Subject      *string
	Date         *time.Time
	StartTime    *int
	EndTime      *int
	RoomUid      *string
	Participants *[]Participant
}

// Availability is the result of a booking probe. Reason is set only when
// the slot cannot be taken.
type Availability struct {
	Available bool
	Reason    string
}

const (
	ReasonScheduleClosed   = "schedule_closed"
	ReasonOverlapsExisting = "overlaps_existing"
)

type Service interface {
	List(ctx context.Context, query ListQuery) ([]Reservation, int, error)
	Get(ctx context.Context, uid string) (*Reservation, error)
	Create(ctx context.Context, reservation Reservation) (Reservation, error)
	Update(ctx context.Context, uid string, patch Patch) (Reservation, error)
	Transition(ctx context.Context, uid string, target Status) (Reservation, error)
	Delete(ctx context.Context, uid string) error
	CheckAvailability(ctx context.Context, roomUid string, date time.Time, start, end int) (Availability, error)
	CompleteFinished(ctx context.Context) (int, error)
}

type ServiceImpl struct {
	repo     Repository
	notifier Notifier
	clock    utils.Clock
}

func NewService(repo Repository, notifier Notifier, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, notifier: notifier, clock: clock}
}

func (s *ServiceImpl) List(ctx context.Context, query ListQuery) ([]Reservation, int, error) {
	if query.Page < 1 || query.PerPage < 1 {
		result := &validation.Result{}
		result.Add("page", "page and per_page must be positive")
		return nil, 0, result.AsError()
	}
	filter := ListFilter{
		RoomUid: query.RoomUid,
		Date:    query.Date,
		Status:  query.Status,
		Offset:  (query.Page - 1) * query.PerPage,
		Limit:   query.PerPage,
	}
	return s.repo.List(ctx, filter)
}

func (s *ServiceImpl) Get(ctx context.Context, uid string) (*Reservation, error) {
	return s.repo.GetByUid(ctx, uid)
}

func (s *ServiceImpl) Create(ctx context.Context, reservation Reservation) (Reservation, error) {
	requester, err := auth.CurrentRequester(ctx)
	if err != nil {
		return Reservation{}, err
	}
	reservation.CreatedBy = requester
	reservation.Status = StatusPending

	if err := reservation.Validate().AsError(); err != nil {
		return Reservation{}, err
	}

	var created Reservation
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		booked, err := repo.GetRoomForBooking(ctx, reservation.RoomUid)
		if err != nil {
			return err
		}
		if !booked.AvailableAt(reservation.Date, reservation.StartTime, reservation.EndTime) {
			return ErrScheduleClosed
		}
		overlaps, err := repo.HasOverlap(ctx, booked.Id, reservation.Date, reservation.StartTime, reservation.EndTime, 0)
		if err != nil {
			return err
		}
		if overlaps {
			return ErrReservationOverlap
		}
		created, err = repo.Store(ctx, reservation, booked.Id)
		if err != nil {
			return err
		}
		return repo.LinkToRoom(ctx, booked.Id, created.Id)
	})
	if err != nil {
		return Reservation{}, err
	}
	log.Infof("Reservation %s created by %s for room %s", created.Uid, created.CreatedBy, created.RoomUid)
	return created, nil
}

func (s *ServiceImpl) Update(ctx context.Context, uid string, patch Patch) (Reservation, error) {
	existing, err := s.repo.GetByUid(ctx, uid)
	if err != nil {
		return Reservation{}, err
	}
	if existing.Status.Terminal() {
		return Reservation{}, ErrFinalized
	}

	updated := *existing
	previousRoomUid := existing.RoomUid
	if patch.Subject != nil {
		updated.Subject = *patch.Subject
	}
	if patch.Date != nil {
		updated.Date = *patch.Date
	}
	if patch.StartTime != nil {
		updated.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		updated.EndTime = *patch.EndTime
	}
	if patch.RoomUid != nil {
		updated.RoomUid = *patch.RoomUid
	}
	if patch.Participants != nil {
		updated.Participants = *patch.Participants
	}

	if err := updated.Validate().AsError(); err != nil {
		return Reservation{}, err
	}

	moving := updated.RoomUid != previousRoomUid
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		// Lock the rooms in uid order so two moves in opposite directions
		// cannot wait on each other.
		lockOrder := []string{updated.RoomUid}
		if moving {
			lockOrder = []string{previousRoomUid, updated.RoomUid}
			if updated.RoomUid < previousRoomUid {
				lockOrder = []string{updated.RoomUid, previousRoomUid}
			}
		}
		locked := make(map[string]*room.Room, len(lockOrder))
		for _, roomUid := range lockOrder {
			r, err := repo.GetRoomForBooking(ctx, roomUid)
			if err != nil {
				return err
			}
			locked[roomUid] = r
		}

		booked := locked[updated.RoomUid]
		if !booked.AvailableAt(updated.Date, updated.StartTime, updated.EndTime) {
			return ErrScheduleClosed
		}
		overlaps, err := repo.HasOverlap(ctx, booked.Id, updated.Date, updated.StartTime, updated.EndTime, updated.Id)
		if err != nil {
			return err
		}
		if overlaps {
			return ErrReservationOverlap
		}
		if err := repo.Update(ctx, updated, booked.Id); err != nil {
			return err
		}
		if moving {
			if err := repo.UnlinkFromRoom(ctx, locked[previousRoomUid].Id, updated.Id); err != nil {
				return err
			}
		}
		return repo.LinkToRoom(ctx, booked.Id, updated.Id)
	})
	if err != nil {
		return Reservation{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) Transition(ctx context.Context, uid string, target Status) (Reservation, error) {
	existing, err := s.repo.GetByUid(ctx, uid)
	if err != nil {
		return Reservation{}, err
	}

	// Cancelling an already cancelled reservation is a no-op.
	if existing.Status == StatusCancelled && target == StatusCancelled {
		return *existing, nil
	}
	if !existing.Status.CanTransitionTo(target) {
		if existing.Status.Terminal() {
			return Reservation{}, ErrFinalized
		}
		return Reservation{}, ErrInvalidTransition
	}

	if err := s.repo.UpdateStatus(ctx, existing.Id, target); err != nil {
		return Reservation{}, err
	}
	existing.Status = target
	log.Infof("Reservation %s moved to %s", existing.Uid, target)

	s.notify(ctx, *existing)
	return *existing, nil
}

// notify is best effort. A mail failure must not fail the transition that
// already committed.
func (s *ServiceImpl) notify(ctx context.Context, reservation Reservation) {
	var err error
	switch reservation.Status {
	case StatusConfirmed:
		err = s.notifier.ReservationConfirmed(ctx, reservation)
	case StatusCancelled:
		err = s.notifier.ReservationCancelled(ctx, reservation)
	}
	if err != nil {
		log.Errorf("could not notify participants of reservation %s: %v", reservation.Uid, err)
	}
}

func (s *ServiceImpl) Delete(ctx context.Context, uid string) error {
	existing, err := s.repo.GetByUid(ctx, uid)
	if err != nil {
		return err
	}
	return s.repo.WithTransaction(ctx, func(repo Repository) error {
		booked, err := repo.GetRoomForBooking(ctx, existing.RoomUid)
		if err != nil {
			return err
		}
		if err := repo.UnlinkFromRoom(ctx, booked.Id, existing.Id); err != nil {
			return err
		}
		return repo.Delete(ctx, existing.Id)
	})
}

func (s *ServiceImpl) CheckAvailability(ctx context.Context, roomUid string, date time.Time, start, end int) (Availability, error) {
	result := &validation.Result{}
	if date.IsZero() {
		result.Add("date", "date is required")
	}
	if start < 0 || end > room.MinutesPerDay || end <= start {
		result.Add("time", "time window must satisfy 0 <= start < end <= 1440")
	}
	if err := result.AsError(); err != nil {
		return Availability{}, err
	}

	booked, err := s.repo.GetRoomForBooking(ctx, roomUid)
	if err != nil {
		return Availability{}, err
	}
	if !booked.AvailableAt(date, start, end) {
		return Availability{Available: false, Reason: ReasonScheduleClosed}, nil
	}
	overlaps, err := s.repo.HasOverlap(ctx, booked.Id, date, start, end, 0)
	if err != nil {
		return Availability{}, err
	}
	if overlaps {
		return Availability{Available: false, Reason: ReasonOverlapsExisting}, nil
	}
	return Availability{Available: true}, nil
}
