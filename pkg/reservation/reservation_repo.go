package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salas/salas/pkg/room"
	log "github.com/sirupsen/logrus"
)

// ListFilter narrows and pages the reservation listing. Zero values mean "not set".
type ListFilter struct {
	RoomUid string
	Date    time.Time
	Status  Status
	Offset  int
	Limit   int
}

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	// GetRoomForBooking loads the room with its schedule. Inside a transaction
	// the room row is locked, serializing concurrent bookings for that room.
	GetRoomForBooking(ctx context.Context, roomUid string) (*room.Room, error)
	HasOverlap(ctx context.Context, roomId int, date time.Time, start, end, excludeId int) (bool, error)
	Store(ctx context.Context, reservation Reservation, roomId int) (Reservation, error)
	LinkToRoom(ctx context.Context, roomId, reservationId int) error
	UnlinkFromRoom(ctx context.Context, roomId, reservationId int) error
	GetByUid(ctx context.Context, uid string) (*Reservation, error)
	List(ctx context.Context, filter ListFilter) ([]Reservation, int, error)
	Update(ctx context.Context, reservation Reservation, roomId int) error
	UpdateStatus(ctx context.Context, id int, status Status) error
	Delete(ctx context.Context, id int) error
	FindConfirmedPastEnd(ctx context.Context, now time.Time) ([]int, error)
	MarkCompleted(ctx context.Context, id int) (bool, error)
}

type RepositoryImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepositoryImpl{db: r.db, tx: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) GetRoomForBooking(ctx context.Context, roomUid string) (*room.Room, error) {
	query := `SELECT id, uid, name, capacity FROM room WHERE uid = $1`
	if r.tx != nil {
		query += " FOR UPDATE"
	}

	var booked room.Room
	err := r.getQueryer().QueryRowContext(ctx, query, roomUid).
		Scan(&booked.Id, &booked.Uid, &booked.Name, &booked.Capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, room.ErrRoomNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query room for booking: %w", err)
		log.Error(err)
		return nil, err
	}

	windowQuery := `SELECT day_of_week, open_minutes, close_minutes
					FROM room_availability WHERE room_id = $1 ORDER BY day_of_week`
	rows, err := r.getQueryer().QueryContext(ctx, windowQuery, booked.Id)
	if err != nil {
		err := fmt.Errorf("could not query availability windows: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var window room.AvailabilityWindow
		var day int
		if err := rows.Scan(&day, &window.Open, &window.Close); err != nil {
			err := fmt.Errorf("could not scan availability window: %w", err)
			log.Error(err)
			return nil, err
		}
		window.Day = time.Weekday(day)
		booked.Availability = append(booked.Availability, window)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	exceptionQuery := `SELECT date, open_minutes, close_minutes, reason
					   FROM room_exception WHERE room_id = $1 ORDER BY date, id`
	exceptionRows, err := r.getQueryer().QueryContext(ctx, exceptionQuery, booked.Id)
	if err != nil {
		err := fmt.Errorf("could not query schedule exceptions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer exceptionRows.Close()
	for exceptionRows.Next() {
		var exception room.ScheduleException
		if err := exceptionRows.Scan(&exception.Date, &exception.Open, &exception.Close, &exception.Reason); err != nil {
			err := fmt.Errorf("could not scan schedule exception: %w", err)
			log.Error(err)
			return nil, err
		}
		booked.Exceptions = append(booked.Exceptions, exception)
	}
	if err := exceptionRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return &booked, nil
}

func (r *RepositoryImpl) HasOverlap(ctx context.Context, roomId int, date time.Time, start, end, excludeId int) (bool, error) {
	query := `SELECT EXISTS (
				SELECT 1 FROM reservation
				WHERE room_id = $1
				  AND date = $2
				  AND status IN ('pending', 'confirmed')
				  AND start_minutes < $3
				  AND end_minutes > $4
				  AND id <> $5
			  )`

	var exists bool
	err := r.getQueryer().QueryRowContext(ctx, query, roomId, date.Format("2006-01-02"), end, start, excludeId).Scan(&exists)
	if err != nil {
		err := fmt.Errorf("could not scan for overlapping reservations: %w", err)
		log.Error(err)
		return false, err
	}
	return exists, nil
}

func (r *RepositoryImpl) Store(ctx context.Context, reservation Reservation, roomId int) (Reservation, error) {
	query := `INSERT INTO reservation (uid, subject, date, start_minutes, end_minutes, room_id, status, created_by)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id, created_at, updated_at`

	reservation.Uid = uuid.New().String()
	reservation.Subject = strings.TrimSpace(reservation.Subject)
	err := r.getQueryer().QueryRowContext(ctx, query,
		reservation.Uid,
		reservation.Subject,
		reservation.Date.Format("2006-01-02"),
		reservation.StartTime,
		reservation.EndTime,
		roomId,
		string(reservation.Status),
		reservation.CreatedBy,
	).Scan(&reservation.Id, &reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		err := fmt.Errorf("could not store reservation: %w", err)
		log.Error(err)
		return Reservation{}, err
	}

	if err := r.storeParticipants(ctx, reservation.Id, reservation.Participants); err != nil {
		return Reservation{}, err
	}

	return reservation, nil
}

func (r *RepositoryImpl) storeParticipants(ctx context.Context, reservationId int, participants []Participant) error {
	query := `INSERT INTO reservation_participant (reservation_id, internal, code, role, enterprise, name, email, phone)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, participant := range participants {
		_, err := r.getQueryer().ExecContext(ctx, query,
			reservationId,
			participant.Internal,
			participant.Code,
			participant.Role,
			participant.Enterprise,
			participant.Name,
			strings.ToLower(strings.TrimSpace(participant.Email)),
			participant.Phone,
		)
		if err != nil {
			err := fmt.Errorf("could not store participant: %w", err)
			log.Error(err)
			return err
		}
	}
	return nil
}

func (r *RepositoryImpl) LinkToRoom(ctx context.Context, roomId, reservationId int) error {
	// ON CONFLICT DO NOTHING gives the append-if-absent semantics of the
	// back-reference set: concurrent duplicate links collapse to one row.
	query := `INSERT INTO room_reservation_index (room_id, reservation_id)
			  VALUES ($1, $2)
			  ON CONFLICT DO NOTHING`
	if _, err := r.getQueryer().ExecContext(ctx, query, roomId, reservationId); err != nil {
		err := fmt.Errorf("could not link reservation to room: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) UnlinkFromRoom(ctx context.Context, roomId, reservationId int) error {
	query := `DELETE FROM room_reservation_index WHERE room_id = $1 AND reservation_id = $2`
	if _, err := r.getQueryer().ExecContext(ctx, query, roomId, reservationId); err != nil {
		err := fmt.Errorf("could not unlink reservation from room: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

const reservationColumns = `res.id, res.uid, res.subject, res.date, res.start_minutes, res.end_minutes,
			room.uid, res.status, res.created_by, res.created_at, res.updated_at`

func scanReservation(scanner interface{ Scan(dest ...interface{}) error }) (Reservation, error) {
	var reservation Reservation
	var status string
	err := scanner.Scan(
		&reservation.Id,
		&reservation.Uid,
		&reservation.Subject,
		&reservation.Date,
		&reservation.StartTime,
		&reservation.EndTime,
		&reservation.RoomUid,
		&status,
		&reservation.CreatedBy,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	reservation.Status = Status(status)
	return reservation, err
}

func (r *RepositoryImpl) GetByUid(ctx context.Context, uid string) (*Reservation, error) {
	query := fmt.Sprintf(`SELECT %s
			  FROM reservation res
			  JOIN room ON room.id = res.room_id
			  WHERE res.uid = $1`, reservationColumns)

	reservation, err := scanReservation(r.getQueryer().QueryRowContext(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query reservation: %w", err)
		log.Error(err)
		return nil, err
	}

	if err := r.loadParticipants(ctx, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *RepositoryImpl) loadParticipants(ctx context.Context, reservation *Reservation) error {
	query := `SELECT internal, code, role, enterprise, name, email, phone
			  FROM reservation_participant
			  WHERE reservation_id = $1
			  ORDER BY id`
	rows, err := r.getQueryer().QueryContext(ctx, query, reservation.Id)
	if err != nil {
		err := fmt.Errorf("could not query participants: %w", err)
		log.Error(err)
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var participant Participant
		if err := rows.Scan(
			&participant.Internal,
			&participant.Code,
			&participant.Role,
			&participant.Enterprise,
			&participant.Name,
			&participant.Email,
			&participant.Phone,
		); err != nil {
			err := fmt.Errorf("could not scan participant: %w", err)
			log.Error(err)
			return err
		}
		reservation.Participants = append(reservation.Participants, participant)
	}
	return rows.Err()
}

func (r *RepositoryImpl) List(ctx context.Context, filter ListFilter) ([]Reservation, int, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.RoomUid != "" {
		args = append(args, filter.RoomUid)
		where = append(where, fmt.Sprintf("room.uid = $%d", len(args)))
	}
	if !filter.Date.IsZero() {
		args = append(args, filter.Date.Format("2006-01-02"))
		where = append(where, fmt.Sprintf("res.date = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("res.status = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM reservation res JOIN room ON room.id = res.room_id %s`, whereClause)
	if err := r.getQueryer().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		err := fmt.Errorf("could not count reservations: %w", err)
		log.Error(err)
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s
			  FROM reservation res
			  JOIN room ON room.id = res.room_id
			  %s
			  ORDER BY res.date ASC, res.start_minutes ASC, res.id ASC
			  LIMIT $%d OFFSET $%d`, reservationColumns, whereClause, len(args)-1, len(args))

	rows, err := r.getQueryer().QueryContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query reservations: %w", err)
		log.Error(err)
		return nil, 0, err
	}
	defer rows.Close()

	reservations := make([]Reservation, 0, filter.Limit)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			err := fmt.Errorf("could not scan reservation: %w", err)
			log.Error(err)
			return nil, 0, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, 0, err
	}

	for i := range reservations {
		if err := r.loadParticipants(ctx, &reservations[i]); err != nil {
			return nil, 0, err
		}
	}

	return reservations, total, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, reservation Reservation, roomId int) error {
	query := `UPDATE reservation
			  SET subject = $1, date = $2, start_minutes = $3, end_minutes = $4, room_id = $5, updated_at = now()
			  WHERE id = $6`
	result, err := r.getQueryer().ExecContext(ctx, query,
		strings.TrimSpace(reservation.Subject),
		reservation.Date.Format("2006-01-02"),
		reservation.StartTime,
		reservation.EndTime,
		roomId,
		reservation.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update reservation: %w", err)
		log.Error(err)
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not get rows affected: %w", err)
		log.Error(err)
		return err
	}
	if rowsAffected == 0 {
		return ErrReservationNotFound
	}

	if _, err := r.getQueryer().ExecContext(ctx, "DELETE FROM reservation_participant WHERE reservation_id = $1", reservation.Id); err != nil {
		err := fmt.Errorf("could not clear participants: %w", err)
		log.Error(err)
		return err
	}
	return r.storeParticipants(ctx, reservation.Id, reservation.Participants)
}

func (r *RepositoryImpl) UpdateStatus(ctx context.Context, id int, status Status) error {
	query := `UPDATE reservation SET status = $1, updated_at = now() WHERE id = $2`
	result, err := r.getQueryer().ExecContext(ctx, query, string(status), id)
	if err != nil {
		err := fmt.Errorf("could not update reservation status: %w", err)
		log.Error(err)
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not get rows affected: %w", err)
		log.Error(err)
		return err
	}
	if rowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id int) error {
	result, err := r.getQueryer().ExecContext(ctx, "DELETE FROM reservation WHERE id = $1", id)
	if err != nil {
		err := fmt.Errorf("could not delete reservation: %w", err)
		log.Error(err)
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not get rows affected: %w", err)
		log.Error(err)
		return err
	}
	if rowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *RepositoryImpl) FindConfirmedPastEnd(ctx context.Context, now time.Time) ([]int, error) {
	query := `SELECT id FROM reservation
			  WHERE status = 'confirmed'
			    AND (date::timestamp + make_interval(mins => end_minutes)) < $1`
	rows, err := r.getQueryer().QueryContext(ctx, query, now)
	if err != nil {
		err := fmt.Errorf("could not query finished reservations: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			err := fmt.Errorf("could not scan reservation id: %w", err)
			log.Error(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *RepositoryImpl) MarkCompleted(ctx context.Context, id int) (bool, error) {
	// Guarded by status so a concurrent cancellation wins over the sweep.
	query := `UPDATE reservation SET status = 'completed', updated_at = now()
			  WHERE id = $1 AND status = 'confirmed'`
	result, err := r.getQueryer().ExecContext(ctx, query, id)
	if err != nil {
		err := fmt.Errorf("could not mark reservation completed: %w", err)
		log.Error(err)
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not get rows affected: %w", err)
		log.Error(err)
		return false, err
	}
	return rowsAffected == 1, nil
}
