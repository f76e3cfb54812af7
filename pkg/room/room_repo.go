package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// ListFilter narrows and pages the room listing. Zero values mean "not set".
type ListFilter struct {
	Search      string
	MinCapacity int
	MaxCapacity int
	Offset      int
	Limit       int
}

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	Store(ctx context.Context, room Room) (Room, error)
	List(ctx context.Context, filter ListFilter) ([]Room, int, error)
	GetByUid(ctx context.Context, uid string) (*Room, error)
	Update(ctx context.Context, room Room) (*Room, error)
	Delete(ctx context.Context, uid string) (*Room, error)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *RepositoryImpl) Store(ctx context.Context, room Room) (Room, error) {
	query := `INSERT INTO room (uid, name, description, capacity)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at, updated_at`

	room.Uid = uuid.New().String()
	room.Name = strings.TrimSpace(room.Name)
	err := r.getQueryer().QueryRowContext(ctx, query, room.Uid, room.Name, room.Description, room.Capacity).
		Scan(&room.Id, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Room{}, ErrDuplicateName
		}
		err := fmt.Errorf("could not store room: %w", err)
		log.Error(err)
		return Room{}, err
	}

	if err := r.storeSchedule(ctx, room.Id, room.Availability, room.Exceptions); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (r *RepositoryImpl) storeSchedule(ctx context.Context, roomId int, windows []AvailabilityWindow, exceptions []ScheduleException) error {
	windowQuery := `INSERT INTO room_availability (room_id, day_of_week, open_minutes, close_minutes)
					VALUES ($1, $2, $3, $4)`
	for _, window := range windows {
		if _, err := r.getQueryer().ExecContext(ctx, windowQuery, roomId, int(window.Day), window.Open, window.Close); err != nil {
			err := fmt.Errorf("could not store availability window: %w", err)
			log.Error(err)
			return err
		}
	}

	exceptionQuery := `INSERT INTO room_exception (room_id, date, open_minutes, close_minutes, reason)
					   VALUES ($1, $2, $3, $4, $5)`
	for _, exception := range exceptions {
		reason := exception.Reason
		if reason == "" {
			reason = "Special schedule"
		}
		_, err := r.getQueryer().ExecContext(ctx, exceptionQuery,
			roomId, exception.Date.Format("2006-01-02"), exception.Open, exception.Close, reason)
		if err != nil {
			err := fmt.Errorf("could not store schedule exception: %w", err)
			log.Error(err)
			return err
		}
	}
	return nil
}

func (r *RepositoryImpl) List(ctx context.Context, filter ListFilter) ([]Room, int, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.MinCapacity > 0 {
		args = append(args, filter.MinCapacity)
		where = append(where, fmt.Sprintf("capacity >= $%d", len(args)))
	}
	if filter.MaxCapacity > 0 {
		args = append(args, filter.MaxCapacity)
		where = append(where, fmt.Sprintf("capacity <= $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM room %s", whereClause)
	if err := r.getQueryer().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		err := fmt.Errorf("could not count rooms: %w", err)
		log.Error(err)
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(
		`SELECT id, uid, name, description, capacity, created_at, updated_at
		 FROM room %s
		 ORDER BY name ASC, id ASC
		 LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args),
	)

	rows, err := r.getQueryer().QueryContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query rooms: %w", err)
		log.Error(err)
		return nil, 0, err
	}
	defer rows.Close()

	rooms := make([]Room, 0, filter.Limit)
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.Id, &room.Uid, &room.Name, &room.Description, &room.Capacity, &room.CreatedAt, &room.UpdatedAt); err != nil {
			err := fmt.Errorf("could not scan room: %w", err)
			log.Error(err)
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, 0, err
	}

	for i := range rooms {
		if err := r.loadSchedule(ctx, &rooms[i]); err != nil {
			return nil, 0, err
		}
		if err := r.loadReservationRefs(ctx, &rooms[i]); err != nil {
			return nil, 0, err
		}
	}

	return rooms, total, nil
}

func (r *RepositoryImpl) GetByUid(ctx context.Context, uid string) (*Room, error) {
	query := `SELECT id, uid, name, description, capacity, created_at, updated_at
			  FROM room WHERE uid = $1`

	var room Room
	err := r.getQueryer().QueryRowContext(ctx, query, uid).
		Scan(&room.Id, &room.Uid, &room.Name, &room.Description, &room.Capacity, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query room: %w", err)
		log.Error(err)
		return nil, err
	}

	if err := r.loadSchedule(ctx, &room); err != nil {
		return nil, err
	}
	if err := r.loadReservationRefs(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RepositoryImpl) loadSchedule(ctx context.Context, room *Room) error {
	windowQuery := `SELECT day_of_week, open_minutes, close_minutes
					FROM room_availability WHERE room_id = $1 ORDER BY day_of_week`
	rows, err := r.getQueryer().QueryContext(ctx, windowQuery, room.Id)
	if err != nil {
		err := fmt.Errorf("could not query availability windows: %w", err)
		log.Error(err)
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var window AvailabilityWindow
		var day int
		if err := rows.Scan(&day, &window.Open, &window.Close); err != nil {
			err := fmt.Errorf("could not scan availability window: %w", err)
			log.Error(err)
			return err
		}
		window.Day = time.Weekday(day)
		room.Availability = append(room.Availability, window)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows: %w", err)
	}

	exceptionQuery := `SELECT date, open_minutes, close_minutes, reason
					   FROM room_exception WHERE room_id = $1 ORDER BY date, id`
	exceptionRows, err := r.getQueryer().QueryContext(ctx, exceptionQuery, room.Id)
	if err != nil {
		err := fmt.Errorf("could not query schedule exceptions: %w", err)
		log.Error(err)
		return err
	}
	defer exceptionRows.Close()
	for exceptionRows.Next() {
		var exception ScheduleException
		if err := exceptionRows.Scan(&exception.Date, &exception.Open, &exception.Close, &exception.Reason); err != nil {
			err := fmt.Errorf("could not scan schedule exception: %w", err)
			log.Error(err)
			return err
		}
		room.Exceptions = append(room.Exceptions, exception)
	}
	return exceptionRows.Err()
}

func (r *RepositoryImpl) loadReservationRefs(ctx context.Context, room *Room) error {
	query := `SELECT res.uid, res.date, res.start_minutes, res.end_minutes, res.status
			  FROM room_reservation_index idx
			  JOIN reservation res ON res.id = idx.reservation_id
			  WHERE idx.room_id = $1
			  ORDER BY res.date, res.start_minutes, res.id`
	rows, err := r.getQueryer().QueryContext(ctx, query, room.Id)
	if err != nil {
		err := fmt.Errorf("could not query reservation back-references: %w", err)
		log.Error(err)
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ref ReservationRef
		if err := rows.Scan(&ref.Uid, &ref.Date, &ref.StartTime, &ref.EndTime, &ref.Status); err != nil {
			err := fmt.Errorf("could not scan reservation back-reference: %w", err)
			log.Error(err)
			return err
		}
		room.Reservations = append(room.Reservations, ref)
	}
	return rows.Err()
}

func (r *RepositoryImpl) Update(ctx context.Context, room Room) (*Room, error) {
	query := `UPDATE room SET name = $1, description = $2, capacity = $3, updated_at = now()
			  WHERE id = $4
			  RETURNING updated_at`

	room.Name = strings.TrimSpace(room.Name)
	err := r.getQueryer().QueryRowContext(ctx, query, room.Name, room.Description, room.Capacity, room.Id).
		Scan(&room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		err := fmt.Errorf("could not update room: %w", err)
		log.Error(err)
		return nil, err
	}

	// Schedule rows are replaced wholesale; partial merging happened in the service.
	if _, err := r.getQueryer().ExecContext(ctx, "DELETE FROM room_availability WHERE room_id = $1", room.Id); err != nil {
		err := fmt.Errorf("could not clear availability windows: %w", err)
		log.Error(err)
		return nil, err
	}
	if _, err := r.getQueryer().ExecContext(ctx, "DELETE FROM room_exception WHERE room_id = $1", room.Id); err != nil {
		err := fmt.Errorf("could not clear schedule exceptions: %w", err)
		log.Error(err)
		return nil, err
	}
	if err := r.storeSchedule(ctx, room.Id, room.Availability, room.Exceptions); err != nil {
		return nil, err
	}

	return &room, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, uid string) (*Room, error) {
	room, err := r.GetByUid(ctx, uid)
	if err != nil {
		return nil, err
	}

	result, err := r.getQueryer().ExecContext(ctx, "DELETE FROM room WHERE id = $1", room.Id)
	if err != nil {
		err := fmt.Errorf("could not delete room: %w", err)
		log.Error(err)
		return nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not get rows affected: %w", err)
		log.Error(err)
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
