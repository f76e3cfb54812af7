package room

import (
	"context"
	"testing"
	"time"

	"github.com/salas/salas/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var repoStub = NewStubRepository()

var clock = &utils.MockClock{FixedNow: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

var service Service

func setup(t *testing.T) func() {
	service = NewService(repoStub, clock)
	return func() {
		t.Log("Teardown after test")
		repoStub.Cleanup()
	}
}

func sampleRoom(name string, capacity int) Room {
	return Room{
		Name:     name,
		Capacity: capacity,
		Availability: []AvailabilityWindow{
			{Day: time.Monday, Open: 480, Close: 1020},
		},
	}
}

func TestServiceImpl_Create(t *testing.T) {
	t.Run("should create a room successfully", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		created, err := service.Create(ctx, sampleRoom("Sala 301", 12))

		// then
		assert.NoError(t, err)
		assert.NotEmpty(t, created.Uid)
		assert.Equal(t, "Sala 301", created.Name)
	})

	t.Run("should reject an invalid room before persistence", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, err := service.Create(ctx, Room{Name: "", Capacity: 0})

		// then
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "name")
		assert.Contains(t, err.Error(), "capacity")
	})

	t.Run("should reject a duplicate name", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		_, err := service.Create(ctx, sampleRoom("Sala 301", 12))
		require.NoError(t, err)

		// when
		_, err = service.Create(ctx, sampleRoom("Sala 301", 8))

		// then
		assert.ErrorIs(t, err, ErrDuplicateName)
	})
}

func TestServiceImpl_List(t *testing.T) {
	t.Run("should filter by search text and capacity together", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		_, err := service.Create(ctx, sampleRoom("Sala Grande", 30))
		require.NoError(t, err)
		_, err = service.Create(ctx, sampleRoom("Sala Chica", 4))
		require.NoError(t, err)
		_, err = service.Create(ctx, sampleRoom("Auditorio", 100))
		require.NoError(t, err)

		// when
		rooms, total, err := service.List(ctx, ListQuery{Page: 1, PerPage: 10, Search: "sala", MinCapacity: 10})

		// then
		assert.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, rooms, 1)
		assert.Equal(t, "Sala Grande", rooms[0].Name)
	})

	t.Run("should sort by name and page deterministically", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		for _, name := range []string{"Gamma", "Alpha", "Beta"} {
			_, err := service.Create(ctx, sampleRoom(name, 10))
			require.NoError(t, err)
		}

		// when
		firstPage, total, err := service.List(ctx, ListQuery{Page: 1, PerPage: 2})
		require.NoError(t, err)
		secondPage, _, err := service.List(ctx, ListQuery{Page: 2, PerPage: 2})
		require.NoError(t, err)

		// then
		assert.Equal(t, 3, total)
		require.Len(t, firstPage, 2)
		assert.Equal(t, "Alpha", firstPage[0].Name)
		assert.Equal(t, "Beta", firstPage[1].Name)
		require.Len(t, secondPage, 1)
		assert.Equal(t, "Gamma", secondPage[0].Name)
	})

	t.Run("should reject non-positive page and per_page", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, _, err := service.List(ctx, ListQuery{Page: 0, PerPage: -1})

		// then
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "page")
		assert.Contains(t, err.Error(), "per_page")
	})
}

func TestServiceImpl_Get(t *testing.T) {
	t.Run("should project exceptions to the requested month without persisting", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		room := sampleRoom("Sala 301", 12)
		room.Exceptions = []ScheduleException{
			{Date: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), Open: 0, Close: 0},
			{Date: time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), Open: 0, Close: 0},
		}
		created, err := service.Create(ctx, room)
		require.NoError(t, err)

		// when
		projected, err := service.Get(ctx, created.Uid, 6)

		// then
		assert.NoError(t, err)
		require.Len(t, projected.Exceptions, 1)
		assert.Equal(t, time.June, projected.Exceptions[0].Date.Month())

		// and the stored room is untouched
		full, err := service.Get(ctx, created.Uid, 0)
		assert.NoError(t, err)
		assert.Len(t, full.Exceptions, 2)
	})

	t.Run("should reject month outside 1-12", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, err := service.Get(ctx, "irrelevant", 13)

		// then
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "month")
	})

	t.Run("should return not found for an unknown uid", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, err := service.Get(ctx, "missing", 0)

		// then
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestServiceImpl_Update(t *testing.T) {
	t.Run("should merge partial updates over the stored room", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		created, err := service.Create(ctx, sampleRoom("Sala 301", 12))
		require.NoError(t, err)

		// when
		capacity := 20
		updated, err := service.Update(ctx, created.Uid, Patch{Capacity: &capacity})

		// then
		assert.NoError(t, err)
		assert.Equal(t, 20, updated.Capacity)
		assert.Equal(t, "Sala 301", updated.Name)
		assert.Len(t, updated.Availability, 1)
	})

	t.Run("should reject a merged room that violates invariants", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		created, err := service.Create(ctx, sampleRoom("Sala 301", 12))
		require.NoError(t, err)

		// when
		capacity := -5
		_, err = service.Update(ctx, created.Uid, Patch{Capacity: &capacity})

		// then
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "capacity")
	})

	t.Run("should reject renaming to an existing name", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		_, err := service.Create(ctx, sampleRoom("Sala 301", 12))
		require.NoError(t, err)
		other, err := service.Create(ctx, sampleRoom("Sala 302", 12))
		require.NoError(t, err)

		// when
		name := "Sala 301"
		_, err = service.Update(ctx, other.Uid, Patch{Name: &name})

		// then
		assert.ErrorIs(t, err, ErrDuplicateName)
	})
}

func TestServiceImpl_Delete(t *testing.T) {
	t.Run("should delete a room and return it", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		created, err := service.Create(ctx, sampleRoom("Sala 301", 12))
		require.NoError(t, err)

		// when
		deleted, err := service.Delete(ctx, created.Uid)

		// then
		assert.NoError(t, err)
		assert.Equal(t, created.Uid, deleted.Uid)
		_, err = service.Get(ctx, created.Uid, 0)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("should report not found for an unknown room", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, err := service.Delete(ctx, "missing-uid")

		// then
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}
