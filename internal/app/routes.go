package app

import (
	"github.com/gorilla/mux"
	"github.com/salas/salas/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Rooms
	r.HandleFunc("/api/v1/rooms", deps.RoomHandler.ListRooms).Methods("GET")
	r.HandleFunc("/api/v1/rooms", deps.RoomHandler.CreateRoom).Methods("POST")
	r.HandleFunc("/api/v1/rooms/{roomUid}", deps.RoomHandler.GetRoom).Methods("GET")
	r.HandleFunc("/api/v1/rooms/{roomUid}", deps.RoomHandler.UpdateRoom).Methods("PUT")
	r.HandleFunc("/api/v1/rooms/{roomUid}", deps.RoomHandler.DeleteRoom).Methods("DELETE")

	// Reservations
	r.HandleFunc("/api/v1/reservations", deps.ReservationHandler.ListReservations).Methods("GET")
	r.HandleFunc("/api/v1/reservations", deps.ReservationHandler.CreateReservation).Methods("POST")
	r.HandleFunc("/api/v1/reservations/availability", deps.ReservationHandler.CheckAvailability).Methods("POST")
	r.HandleFunc("/api/v1/reservations/{reservationUid}", deps.ReservationHandler.GetReservation).Methods("GET")
	r.HandleFunc("/api/v1/reservations/{reservationUid}", deps.ReservationHandler.UpdateReservation).Methods("PUT")
	r.HandleFunc("/api/v1/reservations/{reservationUid}/status", deps.ReservationHandler.UpdateReservationStatus).Methods("PATCH")
	r.HandleFunc("/api/v1/reservations/{reservationUid}", deps.ReservationHandler.DeleteReservation).Methods("DELETE")

	// Reports
	r.HandleFunc("/api/v1/reports", deps.ReportHandler.GenerateReport).Methods("POST")
}
