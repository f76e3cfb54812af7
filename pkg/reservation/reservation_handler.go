package reservation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/salas/salas/internal/auth"
	"github.com/salas/salas/internal/rest"
	"github.com/salas/salas/internal/validation"
	"github.com/salas/salas/pkg/room"
	log "github.com/sirupsen/logrus"
)

type ParticipantDTO struct {
	Internal   bool   `json:"internal"`
	Code       int    `json:"code,omitempty"`
	Role       string `json:"role,omitempty"`
	Enterprise string `json:"enterprise,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}

type ReservationDTO struct {
	Id           string           `json:"id"`
	Subject      string           `json:"subject"`
	Date         string           `json:"date"`
	StartTime    int              `json:"startTime"`
	EndTime      int              `json:"endTime"`
	RoomId       string           `json:"roomId"`
	Participants []ParticipantDTO `json:"participants"`
	Status       string           `json:"status"`
	CreatedBy    string           `json:"createdBy"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// reservationRequestDTO covers both POST (full body) and PUT (partial body);
// nil fields on PUT keep the stored value.
type reservationRequestDTO struct {
	Subject      *string           `json:"subject"`
	Date         *string           `json:"date"`
	StartTime    *int              `json:"startTime"`
	EndTime      *int              `json:"endTime"`
	RoomId       *string           `json:"roomId"`
	Participants *[]ParticipantDTO `json:"participants"`
}

type statusRequestDTO struct {
	Status string `json:"status"`
}

type availabilityRequestDTO struct {
	RoomId    string `json:"roomId"`
	Date      string `json:"date"`
	StartTime int    `json:"startTime"`
	EndTime   int    `json:"endTime"`
}

type availabilityDTO struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
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
	case errors.Is(err, auth.ErrNoRequester):
		rest.Fail(w, http.StatusBadRequest, "X-Requester header is required")
	case errors.Is(err, ErrReservationNotFound):
		rest.Fail(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, room.ErrRoomNotFound):
		rest.Fail(w, http.StatusNotFound, "room not found")
	case errors.Is(err, ErrScheduleClosed):
		rest.Conflict(w, ReasonScheduleClosed, "room is not available at the requested time")
	case errors.Is(err, ErrReservationOverlap):
		rest.Conflict(w, ReasonOverlapsExisting, "time window overlaps an existing reservation")
	case errors.Is(err, ErrFinalized):
		rest.Conflict(w, "finalized", "reservation is in a terminal state")
	case errors.Is(err, ErrInvalidTransition):
		rest.Conflict(w, "invalid_transition", "status transition is not allowed")
	default:
		rest.Internal(w, err, h.devMode)
	}
}

// queryInt parses an optional integer query parameter.
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

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		result := &validation.Result{}
		result.Addf(name, "invalid %s %q, expected YYYY-MM-DD", name, raw)
		return time.Time{}, result
	}
	return date, nil
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
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
	date, err := queryDate(r, "date")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var status Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := ParseStatus(raw)
		if !ok {
			result := &validation.Result{}
			result.Addf("status", "unknown status %q", raw)
			h.writeError(w, result)
			return
		}
		status = parsed
	}

	reservations, total, err := h.service.List(r.Context(), ListQuery{
		RoomUid: r.URL.Query().Get("room_id"),
		Date:    date,
		Status:  status,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]ReservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		dtos = append(dtos, reservationToDTO(reservation))
	}

	rest.OK(w, map[string]interface{}{
		"reservations": dtos,
		"pagination":   rest.NewPagination(page, perPage, total),
	}, "reservations listed successfully")
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	reservation, err := h.service.Get(r.Context(), vars["reservationUid"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, reservationToDTO(*reservation), "reservation retrieved successfully")
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new reservation")

	var dto reservationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reservation, err := requestToReservation(dto, Reservation{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), reservation)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.Created(w, reservationToDTO(created), "reservation created successfully")
}

func (h *Handler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var dto reservationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := Patch{
		Subject:   dto.Subject,
		StartTime: dto.StartTime,
		EndTime:   dto.EndTime,
		RoomUid:   dto.RoomId,
	}
	if dto.Date != nil {
		date, err := time.Parse("2006-01-02", *dto.Date)
		if err != nil {
			result := &validation.Result{}
			result.Addf("date", "invalid date %q, expected YYYY-MM-DD", *dto.Date)
			h.writeError(w, result)
			return
		}
		patch.Date = &date
	}
	if dto.Participants != nil {
		participants := participantsFromDTO(*dto.Participants)
		patch.Participants = &participants
	}

	updated, err := h.service.Update(r.Context(), vars["reservationUid"], patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, reservationToDTO(updated), "reservation updated successfully")
}

func (h *Handler) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var dto statusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, ok := ParseStatus(dto.Status)
	if !ok {
		result := &validation.Result{}
		result.Addf("status", "unknown status %q", dto.Status)
		h.writeError(w, result)
		return
	}

	updated, err := h.service.Transition(r.Context(), vars["reservationUid"], target)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, reservationToDTO(updated), "reservation status updated successfully")
}

func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.service.Delete(r.Context(), vars["reservationUid"]); err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, nil, "reservation deleted successfully")
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var dto availabilityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", dto.Date)
	if err != nil {
		result := &validation.Result{}
		result.Addf("date", "invalid date %q, expected YYYY-MM-DD", dto.Date)
		h.writeError(w, result)
		return
	}

	availability, err := h.service.CheckAvailability(r.Context(), dto.RoomId, date, dto.StartTime, dto.EndTime)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rest.OK(w, availabilityDTO{
		Available: availability.Available,
		Reason:    availability.Reason,
	}, "availability checked successfully")
}

func reservationToDTO(reservation Reservation) ReservationDTO {
	participants := make([]ParticipantDTO, 0, len(reservation.Participants))
	for _, participant := range reservation.Participants {
		participants = append(participants, ParticipantDTO{
			Internal:   participant.Internal,
			Code:       participant.Code,
			Role:       participant.Role,
			Enterprise: participant.Enterprise,
			Name:       participant.Name,
			Email:      participant.Email,
			Phone:      participant.Phone,
		})
	}
	return ReservationDTO{
		Id:           reservation.Uid,
		Subject:      reservation.Subject,
		Date:         reservation.Date.Format("2006-01-02"),
		StartTime:    reservation.StartTime,
		EndTime:      reservation.EndTime,
		RoomId:       reservation.RoomUid,
		Participants: participants,
		Status:       string(reservation.Status),
		CreatedBy:    reservation.CreatedBy,
		CreatedAt:    reservation.CreatedAt,
		UpdatedAt:    reservation.UpdatedAt,
	}
}

func requestToReservation(dto reservationRequestDTO, base Reservation) (Reservation, error) {
	reservation := base
	if dto.Subject != nil {
		reservation.Subject = *dto.Subject
	}
	if dto.Date != nil {
		date, err := time.Parse("2006-01-02", *dto.Date)
		if err != nil {
			result := &validation.Result{}
			result.Addf("date", "invalid date %q, expected YYYY-MM-DD", *dto.Date)
			return Reservation{}, result
		}
		reservation.Date = date
	}
	if dto.StartTime != nil {
		reservation.StartTime = *dto.StartTime
	}
	if dto.EndTime != nil {
		reservation.EndTime = *dto.EndTime
	}
	if dto.RoomId != nil {
		reservation.RoomUid = *dto.RoomId
	}
	if dto.Participants != nil {
		reservation.Participants = participantsFromDTO(*dto.Participants)
	}
	return reservation, nil
}

func participantsFromDTO(dtos []ParticipantDTO) []Participant {
	participants := make([]Participant, 0, len(dtos))
	for _, dto := range dtos {
		participants = append(participants, Participant{
			Internal:   dto.Internal,
			Code:       dto.Code,
			Role:       dto.Role,
			Enterprise: dto.Enterprise,
			Name:       dto.Name,
			Email:      dto.Email,
			Phone:      dto.Phone,
		})
	}
	return participants
}
