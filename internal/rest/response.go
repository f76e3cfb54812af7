package rest

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"
)

// Envelope is the response shape shared by every API endpoint:
// {success, data, message, timestamp}.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
	StackTrace string      `json:"stack_trace,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

// Pagination mirrors the listing metadata block returned next to paginated collections.
type Pagination struct {
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
	Records     int  `json:"records"`
	Pages       int  `json:"pages"`
	StartRecord int  `json:"start_record"`
	EndRecord   int  `json:"end_record"`
	HasPrev     bool `json:"has_prev"`
	HasNext     bool `json:"has_next"`
}

// NewPagination computes the metadata block for one page of a listing.
// start_record/end_record are 1-based record indices into the full result set.
func NewPagination(page, perPage, total int) Pagination {
	pages := (total + perPage - 1) / perPage
	end := page * perPage
	if end > total {
		end = total
	}
	return Pagination{
		Page:        page,
		PerPage:     perPage,
		Records:     total,
		Pages:       pages,
		StartRecord: (page-1)*perPage + 1,
		EndRecord:   end,
		HasPrev:     page > 1,
		HasNext:     page < pages,
	}
}

func write(w http.ResponseWriter, status int, envelope Envelope) {
	envelope.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		log.Errorf("could not encode response: %v", err)
	}
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data interface{}, message string) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data interface{}, message string) {
	write(w, http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// Fail writes an error envelope with the given status and message.
func Fail(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

// Conflict writes a 409 envelope carrying a machine-readable reason so the
// client can distinguish, e.g., a closed schedule from an overlapping booking.
func Conflict(w http.ResponseWriter, reason, message string) {
	write(w, http.StatusConflict, Envelope{Success: false, Reason: reason, Message: message})
}

// ValidationFailed writes a 400 envelope with field-level error details.
func ValidationFailed(w http.ResponseWriter, errors interface{}) {
	write(w, http.StatusBadRequest, Envelope{Success: false, Message: "validation failed", Errors: errors})
}

// Internal writes a 500 envelope. The cause is logged; the stack trace is
// included in the body only when devMode is set.
func Internal(w http.ResponseWriter, err error, devMode bool) {
	log.Errorf("internal error: %v", err)
	envelope := Envelope{Success: false, Message: "internal server error"}
	if devMode {
		envelope.Message = err.Error()
		envelope.StackTrace = string(debug.Stack())
	}
	write(w, http.StatusInternalServerError, envelope)
}
