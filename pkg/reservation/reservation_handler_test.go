package reservation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/salas/salas/internal/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*Handler, func()) {
	teardown := setup(t)
	return NewHandler(service, false), teardown
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBuffer(encoded))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req.WithContext(ctx))
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) rest.Envelope {
	t.Helper()
	var envelope rest.Envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	return envelope
}

func createRequestBody() map[string]interface{} {
	return map[string]interface{}{
		"subject":   "Comité de compras",
		"date":      "2025-06-16",
		"startTime": 540,
		"endTime":   600,
		"roomId":    "room-1",
		"participants": []map[string]interface{}{
			{"internal": true, "code": 1021, "role": "Analista", "name": "Laura Pérez", "email": "laura@example.com"},
		},
	}
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Run("should answer 201 with the booked reservation", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		// when
		w := postJSON(t, handler.CreateReservation, "/api/v1/reservations", createRequestBody())

		// then
		assert.Equal(t, http.StatusCreated, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.True(t, envelope.Success)
		created := envelope.Data.(map[string]interface{})
		assert.Equal(t, "pending", created["status"])
		assert.NotEmpty(t, created["id"])
	})

	t.Run("should answer 409 with reason schedule_closed", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		body := createRequestBody()
		body["date"] = "2025-06-17"

		// when
		w := postJSON(t, handler.CreateReservation, "/api/v1/reservations", body)

		// then
		assert.Equal(t, http.StatusConflict, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.False(t, envelope.Success)
		assert.Equal(t, ReasonScheduleClosed, envelope.Reason)
	})

	t.Run("should answer 409 with reason overlaps_existing", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		mustCreate(t, validReservation())

		// when
		w := postJSON(t, handler.CreateReservation, "/api/v1/reservations", createRequestBody())

		// then
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, ReasonOverlapsExisting, decodeEnvelope(t, w).Reason)
	})

	t.Run("should answer 400 with field errors on invalid input", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		body := createRequestBody()
		body["subject"] = ""
		body["participants"] = []map[string]interface{}{}

		// when
		w := postJSON(t, handler.CreateReservation, "/api/v1/reservations", body)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.False(t, envelope.Success)
		assert.NotEmpty(t, envelope.Errors)
	})

	t.Run("should answer 400 on a malformed body", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()

		// when
		handler.CreateReservation(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_GetReservation(t *testing.T) {
	t.Run("should answer 404 for an unknown reservation", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/missing", nil)
		req = mux.SetURLVars(req, map[string]string{"reservationUid": "missing"})
		w := httptest.NewRecorder()

		// when
		handler.GetReservation(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_UpdateReservationStatus(t *testing.T) {
	t.Run("should confirm a pending reservation", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		created := mustCreate(t, validReservation())

		encoded, err := json.Marshal(map[string]string{"status": "confirmed"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/reservations/"+created.Uid+"/status", bytes.NewBuffer(encoded))
		req = mux.SetURLVars(req, map[string]string{"reservationUid": created.Uid})
		w := httptest.NewRecorder()

		// when
		handler.UpdateReservationStatus(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		updated := decodeEnvelope(t, w).Data.(map[string]interface{})
		assert.Equal(t, "confirmed", updated["status"])
	})

	t.Run("should answer 409 on a forbidden transition", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		created := mustCreate(t, validReservation())

		encoded, err := json.Marshal(map[string]string{"status": "completed"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/reservations/"+created.Uid+"/status", bytes.NewBuffer(encoded))
		req = mux.SetURLVars(req, map[string]string{"reservationUid": created.Uid})
		w := httptest.NewRecorder()

		// when
		handler.UpdateReservationStatus(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "invalid_transition", decodeEnvelope(t, w).Reason)
	})

	t.Run("should answer 400 on an unknown status", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		created := mustCreate(t, validReservation())

		encoded, err := json.Marshal(map[string]string{"status": "archived"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/reservations/"+created.Uid+"/status", bytes.NewBuffer(encoded))
		req = mux.SetURLVars(req, map[string]string{"reservationUid": created.Uid})
		w := httptest.NewRecorder()

		// when
		handler.UpdateReservationStatus(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_CheckAvailability(t *testing.T) {
	t.Run("should report the occupied slot with its reason", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		mustCreate(t, validReservation())

		body := map[string]interface{}{
			"roomId": "room-1", "date": "2025-06-16", "startTime": 570, "endTime": 630,
		}

		// when
		w := postJSON(t, handler.CheckAvailability, "/api/v1/reservations/availability", body)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		probe := decodeEnvelope(t, w).Data.(map[string]interface{})
		assert.Equal(t, false, probe["available"])
		assert.Equal(t, ReasonOverlapsExisting, probe["reason"])
	})
}

func TestHandler_ListReservations(t *testing.T) {
	t.Run("should page results with the pagination block", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		mustCreate(t, validReservation())
		second := validReservation()
		second.StartTime = 600
		second.EndTime = 660
		mustCreate(t, second)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations?page=1&per_page=1", nil)
		w := httptest.NewRecorder()

		// when
		handler.ListReservations(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeEnvelope(t, w).Data.(map[string]interface{})
		listed := data["reservations"].([]interface{})
		assert.Len(t, listed, 1)
		pagination := data["pagination"].(map[string]interface{})
		assert.Equal(t, float64(2), pagination["records"])
		assert.Equal(t, true, pagination["has_next"])
	})

	t.Run("should answer 400 on a non-numeric page", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations?page=abc", nil)
		w := httptest.NewRecorder()

		// when
		handler.ListReservations(w, req.WithContext(ctx))

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
