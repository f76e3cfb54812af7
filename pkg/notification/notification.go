package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/salas/salas/internal/config"
	"github.com/salas/salas/pkg/reservation"
	sendgridrest "github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"
)

// mailSender is the part of the SendGrid client the notifier uses.
type mailSender interface {
	Send(email *mail.SGMailV3) (*sendgridrest.Response, error)
}

// EmailNotifier mails every participant of a reservation when it is
// confirmed or cancelled.
type EmailNotifier struct {
	sender   mailSender
	fromName string
	from     string
}

func NewEmailNotifier(cfg config.Mail) *EmailNotifier {
	return &EmailNotifier{
		sender:   sendgrid.NewSendClient(cfg.SendGridApiKey),
		fromName: cfg.FromName,
		from:     cfg.FromEmail,
	}
}

func (n *EmailNotifier) ReservationConfirmed(ctx context.Context, booked reservation.Reservation) error {
	subject := fmt.Sprintf("Reserva confirmada: %s", booked.Subject)
	body := fmt.Sprintf(
		"La reserva %q fue confirmada para el %s, de %s a %s.",
		booked.Subject,
		booked.Date.Format("2006-01-02"),
		formatMinutes(booked.StartTime),
		formatMinutes(booked.EndTime),
	)
	return n.send(booked, subject, body)
}

func (n *EmailNotifier) ReservationCancelled(ctx context.Context, booked reservation.Reservation) error {
	subject := fmt.Sprintf("Reserva cancelada: %s", booked.Subject)
	body := fmt.Sprintf(
		"La reserva %q del %s fue cancelada.",
		booked.Subject,
		booked.Date.Format("2006-01-02"),
	)
	return n.send(booked, subject, body)
}

func (n *EmailNotifier) send(booked reservation.Reservation, subject, body string) error {
	from := mail.NewEmail(n.fromName, n.from)

	var failed []string
	for _, participant := range booked.Participants {
		to := mail.NewEmail(participant.Name, participant.Email)
		message := mail.NewSingleEmail(from, subject, to, body, "")
		response, err := n.sender.Send(message)
		if err != nil {
			failed = append(failed, participant.Email)
			log.Errorf("could not send mail to %s: %v", participant.Email, err)
			continue
		}
		if response.StatusCode >= 400 {
			failed = append(failed, participant.Email)
			log.Errorf("mail to %s rejected with status %d", participant.Email, response.StatusCode)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("could not notify %s", strings.Join(failed, ", "))
	}
	return nil
}

// formatMinutes renders minutes from midnight as HH:MM.
func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
