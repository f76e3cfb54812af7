package app

import (
	"database/sql"

	"github.com/salas/salas/internal/config"
	"github.com/salas/salas/internal/utils"
	"github.com/salas/salas/pkg/notification"
	"github.com/salas/salas/pkg/report"
	"github.com/salas/salas/pkg/reservation"
	"github.com/salas/salas/pkg/room"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	RoomRepo    room.Repository
	RoomService room.Service
	RoomHandler *room.Handler

	Notifier           reservation.Notifier
	ReservationRepo    reservation.Repository
	ReservationService reservation.Service
	ReservationHandler *reservation.Handler

	ReportService report.Service
	ReportHandler *report.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *sql.DB, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}

	deps.RoomRepo = room.NewRepository(db)
	deps.RoomService = room.NewService(deps.RoomRepo, deps.Clock)
	deps.RoomHandler = room.NewHandler(deps.RoomService, cfg.DevMode)

	if cfg.Mail.SendGridApiKey != "" {
		deps.Notifier = notification.NewEmailNotifier(cfg.Mail)
	} else {
		log.Info("No SendGrid API key configured, participant notifications are disabled")
		deps.Notifier = reservation.NoopNotifier{}
	}
	deps.ReservationRepo = reservation.NewRepository(db)
	deps.ReservationService = reservation.NewService(deps.ReservationRepo, deps.Notifier, deps.Clock)
	deps.ReservationHandler = reservation.NewHandler(deps.ReservationService, cfg.DevMode)

	pdfcpu := report.PdfcpuTool{Binary: cfg.Reports.PdfcpuPath}
	deps.ReportService = report.NewService(
		report.DocxRenderer{},
		report.SofficeConverter{Binary: cfg.Reports.SofficePath},
		pdfcpu,
		pdfcpu,
		pdfcpu,
		cfg.Reports.TemplatePath,
		[]string{cfg.Reports.FooterLine1, cfg.Reports.FooterLine2},
		deps.Clock,
	)
	deps.ReportHandler = report.NewHandler(deps.ReportService, cfg.DevMode)

	return deps
}
