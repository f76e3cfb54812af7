package room

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/salas/salas/internal/rest"
	"github.com/salas/salas/internal/validation"
	log "github.com/sirupsen/logrus"
)

type AvailabilityWindowDTO struct {
	Day   int `json:"day"`
	Open  int `json:"open"`
	Close int `json:"close"`
}

type ExceptionDTO struct {
	Date   string `json:"date"`
	Open   int    `json:"open"`
	Close  int    `json:"close"`
	Reason string `json:"reason,omitempty"`
}

type ReservationRefDTO struct {
	Id        string `json:"id"`
	Date      string `json:"date"`
	StartTime int    `json:"startTime"`
	EndTime   int    `json:"endTime"`
	Status    string `json:"status"`
}

type RoomDTO struct {
	Id           string                  `json:"id"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	Capacity     int                     `json:"capacity"`
	Availability []AvailabilityWindowDTO `json:"availability"`
	Exceptions   []ExceptionDTO          `json:"exceptions"`
	Reservations []ReservationRefDTO     `json:"reservations"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// roomRequestDTO covers both POST (full body) and PUT (partial body); nil
// fields on PUT keep the stored value.
type roomRequestDTO struct {
	Name           *string                  `json:"name"`
	Description    *string                  `json:"description"`
	Capacity       *int                     `json:"capacity"`
	Availabilities *[]AvailabilityWindowDTO `json:"availabilities"`
	Exceptions     *[]ExceptionDTO          `json:"exceptions"`
}

type Handler struct {
	service Service
	devMode bool
}

func NewHandler(service Service, devMode bool) *Handler {
	return &Handler{service: service, devMode: devMode}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var result *validation.Result
	switch {
	case errors.As(err, &result):
		rest.ValidationFailed(w, result.Errors)
	case errors.Is(err, ErrRoomNotFound):
		rest.Fail(w, http.StatusNotFound, "room not found")
	case errors.Is(err, ErrDuplicateName):
		rest.Conflict(w, "duplicate_name", "a room with that name already exists")
	default:
		rest.Internal(w, err, h.devMode)
	}
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		result := &validation.Result{}
		result.Addf(name, "%s must be an integer", name)
		return 0, result
	}
	return value, nil
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, err)
		return
	}
	perPage, err := queryInt(r, "per_page", 10)
	if err != nil {
		h.writeError(w, err)
		return
	}
	minCapacity, err := queryInt(r, "min_capacity", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	maxCapacity, err := queryInt(r, "max_capacity", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rooms, total, err := h.service.List(r.Context(), ListQuery{
		Page:        page,
		PerPage:     perPage,
		Search:      r.URL.Query().Get("search"),
		MinCapacity: minCapacity,
		MaxCapacity: maxCapacity,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]RoomDTO, 0, len(rooms))
	for _, room := range rooms {
		dtos = append(dtos, roomToDTO(room))
	}

	rest.OK(w, map[string]interface{}{
		"rooms":      dtos,
		"pagination": rest.NewPagination(page, perPage, total),
	}, "rooms listed successfully")
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	month, err := queryInt(r, "month", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// A zero fallback means "no filter"; a literal ?month=0 is out of range.
	if month == 0 && r.URL.Query().Get("month") != "" {
		result := &validation.Result{}
		result.Addf("month", "month must be between 1 and 12")
		h.writeError(w, result)
		return
	}

	room, err := h.service.Get(r.Context(), vars["roomUid"], month)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, roomToDTO(*room), "room retrieved successfully")
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new room")

	var dto roomRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := requestToRoom(dto, Room{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), room)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.Created(w, roomToDTO(created), "room created successfully")
}

func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var dto roomRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := Patch{
		Name:        dto.Name,
		Description: dto.Description,
		Capacity:    dto.Capacity,
	}
	if dto.Availabilities != nil {
		windows := windowsFromDTO(*dto.Availabilities)
		patch.Availability = &windows
	}
	if dto.Exceptions != nil {
		exceptions, err := exceptionsFromDTO(*dto.Exceptions)
		if err != nil {
			h.writeError(w, err)
			return
		}
		patch.Exceptions = &exceptions
	}

	updated, err := h.service.Update(r.Context(), vars["roomUid"], patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, roomToDTO(*updated), "room updated successfully")
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	deleted, err := h.service.Delete(r.Context(), vars["roomUid"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, roomToDTO(*deleted), "room deleted successfully")
}

func roomToDTO(room Room) RoomDTO {
	windows := make([]AvailabilityWindowDTO, 0, len(room.Availability))
	for _, window := range room.Availability {
		windows = append(windows, AvailabilityWindowDTO{
			Day:   int(window.Day),
			Open:  window.Open,
			Close: window.Close,
		})
	}
	exceptions := make([]ExceptionDTO, 0, len(room.Exceptions))
	for _, exception := range room.Exceptions {
		exceptions = append(exceptions, ExceptionDTO{
			Date:   exception.Date.Format("2006-01-02"),
			Open:   exception.Open,
			Close:  exception.Close,
			Reason: exception.Reason,
		})
	}
	refs := make([]ReservationRefDTO, 0, len(room.Reservations))
	for _, ref := range room.Reservations {
		refs = append(refs, ReservationRefDTO{
			Id:        ref.Uid,
			Date:      ref.Date.Format("2006-01-02"),
			StartTime: ref.StartTime,
			EndTime:   ref.EndTime,
			Status:    ref.Status,
		})
	}
	return RoomDTO{
		Id:           room.Uid,
		Name:         room.Name,
		Description:  room.Description,
		Capacity:     room.Capacity,
		Availability: windows,
		Exceptions:   exceptions,
		Reservations: refs,
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}
}

func requestToRoom(dto roomRequestDTO, base Room) (Room, error) {
	room := base
	if dto.Name != nil {
		room.Name = *dto.Name
	}
	if dto.Description != nil {
		room.Description = *dto.Description
	}
	if dto.Capacity != nil {
		room.Capacity = *dto.Capacity
	}
	if dto.Availabilities != nil {
		room.Availability = windowsFromDTO(*dto.Availabilities)
	}
	if dto.Exceptions != nil {
		exceptions, err := exceptionsFromDTO(*dto.Exceptions)
		if err != nil {
			return Room{}, err
		}
		room.Exceptions = exceptions
	}
	return room, nil
}

func windowsFromDTO(dtos []AvailabilityWindowDTO) []AvailabilityWindow {
	windows := make([]AvailabilityWindow, 0, len(dtos))
	for _, dto := range dtos {
		windows = append(windows, AvailabilityWindow{
			Day:   time.Weekday(dto.Day),
			Open:  dto.Open,
			Close: dto.Close,
		})
	}
	return windows
}

func exceptionsFromDTO(dtos []ExceptionDTO) ([]ScheduleException, error) {
	exceptions := make([]ScheduleException, 0, len(dtos))
	for _, dto := range dtos {
		date, err := time.Parse("2006-01-02", dto.Date)
		if err != nil {
			result := &validation.Result{}
			result.Addf("exceptions", "invalid exception date %q, expected YYYY-MM-DD", dto.Date)
			return nil, result
		}
		exceptions = append(exceptions, ScheduleException{
			Date:   date,
			Open:   dto.Open,
			Close:  dto.Close,
			Reason: dto.Reason,
		})
	}
	return exceptions, nil
}
