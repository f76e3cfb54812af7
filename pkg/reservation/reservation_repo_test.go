package reservation

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/salas/salas/internal/auth"
	"github.com/salas/salas/internal/test_utils"
	"github.com/salas/salas/internal/utils"
	"github.com/salas/salas/pkg/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer

var db *sql.DB

func TestMain(m *testing.M) {
	var openDB func() *sql.DB
	pgContainer, openDB = test_utils.TestWithDB()
	db = openDB()
	code := m.Run()
	db.Close()
	_ = pgContainer.Terminate(context.Background())
	os.Exit(code)
}

func storeTestRoom(t *testing.T, name string) room.Room {
	t.Helper()
	created, err := room.NewRepository(db).Store(context.Background(), room.Room{
		Name:     name,
		Capacity: 8,
		Availability: []room.AvailabilityWindow{
			{Day: time.Monday, Open: 480, Close: 1020},
		},
	})
	require.NoError(t, err)
	return created
}

func testReservation(roomUid string) Reservation {
	reservation := validReservation()
	reservation.RoomUid = roomUid
	return reservation
}

func TestRepositoryImpl_StoreAndGet(t *testing.T) {
	repo := NewRepository(db)
	booked := storeTestRoom(t, "Sala R-101")

	t.Run("should round-trip a reservation with its participants", func(t *testing.T) {
		// when
		created, err := repo.Store(context.Background(), testReservation(booked.Uid), booked.Id)

		// then
		require.NoError(t, err)
		assert.NotZero(t, created.Id)
		assert.NotEmpty(t, created.Uid)

		stored, err := repo.GetByUid(context.Background(), created.Uid)
		require.NoError(t, err)
		assert.Equal(t, "Comité de compras", stored.Subject)
		assert.Equal(t, booked.Uid, stored.RoomUid)
		assert.Equal(t, StatusPending, stored.Status)
		require.Len(t, stored.Participants, 1)
		assert.Equal(t, "laura@example.com", stored.Participants[0].Email)
	})

	t.Run("should report a missing reservation", func(t *testing.T) {
		// when
		_, err := repo.GetByUid(context.Background(), "00000000-0000-0000-0000-000000000000")

		// then
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})
}

func TestRepositoryImpl_GetRoomForBooking(t *testing.T) {
	repo := NewRepository(db)
	booked := storeTestRoom(t, "Sala R-201")

	t.Run("should load the room with its schedule", func(t *testing.T) {
		// when
		loaded, err := repo.GetRoomForBooking(context.Background(), booked.Uid)

		// then
		require.NoError(t, err)
		assert.Equal(t, booked.Id, loaded.Id)
		require.Len(t, loaded.Availability, 1)
		assert.Equal(t, time.Monday, loaded.Availability[0].Day)
	})

	t.Run("should report a missing room", func(t *testing.T) {
		// when
		_, err := repo.GetRoomForBooking(context.Background(), "00000000-0000-0000-0000-000000000000")

		// then
		assert.ErrorIs(t, err, room.ErrRoomNotFound)
	})
}

func TestRepositoryImpl_HasOverlap(t *testing.T) {
	repo := NewRepository(db)
	booked := storeTestRoom(t, "Sala R-301")
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	created, err := repo.Store(context.Background(), testReservation(booked.Uid), booked.Id)
	require.NoError(t, err)

	t.Run("should detect a crossing window", func(t *testing.T) {
		overlaps, err := repo.HasOverlap(context.Background(), booked.Id, monday, 570, 630, 0)
		require.NoError(t, err)
		assert.True(t, overlaps)
	})

	t.Run("should allow a back to back window", func(t *testing.T) {
		overlaps, err := repo.HasOverlap(context.Background(), booked.Id, monday, 600, 660, 0)
		require.NoError(t, err)
		assert.False(t, overlaps)
	})

	t.Run("should ignore other dates", func(t *testing.T) {
		overlaps, err := repo.HasOverlap(context.Background(), booked.Id, monday.AddDate(0, 0, 7), 540, 600, 0)
		require.NoError(t, err)
		assert.False(t, overlaps)
	})

	t.Run("should exclude the given reservation", func(t *testing.T) {
		overlaps, err := repo.HasOverlap(context.Background(), booked.Id, monday, 570, 630, created.Id)
		require.NoError(t, err)
		assert.False(t, overlaps)
	})

	t.Run("should ignore cancelled reservations", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(context.Background(), created.Id, StatusCancelled))

		overlaps, err := repo.HasOverlap(context.Background(), booked.Id, monday, 570, 630, 0)
		require.NoError(t, err)
		assert.False(t, overlaps)
	})
}

func TestRepositoryImpl_LinkToRoom(t *testing.T) {
	repo := NewRepository(db)
	booked := storeTestRoom(t, "Sala R-401")
	created, err := repo.Store(context.Background(), testReservation(booked.Uid), booked.Id)
	require.NoError(t, err)

	t.Run("should tolerate a duplicate link", func(t *testing.T) {
		// when
		require.NoError(t, repo.LinkToRoom(context.Background(), booked.Id, created.Id))
		require.NoError(t, repo.LinkToRoom(context.Background(), booked.Id, created.Id))

		// then
		var count int
		err := db.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM room_reservation_index WHERE room_id = $1 AND reservation_id = $2",
			booked.Id, created.Id).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("should remove the link on unlink", func(t *testing.T) {
		// when
		require.NoError(t, repo.UnlinkFromRoom(context.Background(), booked.Id, created.Id))

		// then
		var count int
		err := db.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM room_reservation_index WHERE room_id = $1", booked.Id).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestRepositoryImpl_WithTransaction(t *testing.T) {
	repo := NewRepository(db)
	booked := storeTestRoom(t, "Sala R-501")

	t.Run("should roll back everything when the callback fails", func(t *testing.T) {
		// when
		err := repo.WithTransaction(context.Background(), func(txRepo Repository) error {
			if _, err := txRepo.Store(context.Background(), testReservation(booked.Uid), booked.Id); err != nil {
				return err
			}
			return errors.New("boom")
		})

		// then
		assert.Error(t, err)
		reservations, total, listErr := repo.List(context.Background(), ListFilter{RoomUid: booked.Uid, Limit: 10})
		require.NoError(t, listErr)
		assert.Zero(t, total)
		assert.Empty(t, reservations)
	})
}

func TestRepositoryImpl_ConcurrentBooking(t *testing.T) {
	booked := storeTestRoom(t, "Sala R-701")
	bookingService := NewService(NewRepository(db), NoopNotifier{}, &utils.MockClock{
		FixedNow: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	})
	bookingCtx := auth.WithRequester(context.Background(), "front-desk")

	t.Run("should let exactly one of two overlapping writers through", func(t *testing.T) {
		// given two bookings racing for the same window
		results := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := bookingService.Create(bookingCtx, testReservation(booked.Uid))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		// then one succeeds and the loser sees the overlap
		var failures []error
		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			failures = append(failures, err)
		}
		assert.Equal(t, 1, succeeded)
		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures[0], ErrReservationOverlap)

		var links int
		err := db.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM room_reservation_index WHERE room_id = $1", booked.Id).Scan(&links)
		require.NoError(t, err)
		assert.Equal(t, 1, links)
	})
}

func TestRepositoryImpl_CompletionQueries(t *testing.T) {
	repo := NewRepository(db)
	booked := storeTestRoom(t, "Sala R-601")

	past := testReservation(booked.Uid)
	past.Date = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	finished, err := repo.Store(context.Background(), past, booked.Id)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), finished.Id, StatusConfirmed))

	upcoming, err := repo.Store(context.Background(), testReservation(booked.Uid), booked.Id)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), upcoming.Id, StatusConfirmed))

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("should find only confirmed reservations past their end", func(t *testing.T) {
		// when
		ids, err := repo.FindConfirmedPastEnd(context.Background(), now)

		// then
		require.NoError(t, err)
		assert.Contains(t, ids, finished.Id)
		assert.NotContains(t, ids, upcoming.Id)
	})

	t.Run("should complete a confirmed reservation exactly once", func(t *testing.T) {
		// when
		moved, err := repo.MarkCompleted(context.Background(), finished.Id)

		// then
		require.NoError(t, err)
		assert.True(t, moved)

		moved, err = repo.MarkCompleted(context.Background(), finished.Id)
		require.NoError(t, err)
		assert.False(t, moved)
	})
}
