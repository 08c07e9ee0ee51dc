package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Service struct {
	mailer  Mailer
	from    string
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(mailer Mailer, from string, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		mailer:  mailer,
		from:    from,
		metrics: m,
		logger:  log,
	}
}

// NewDialer builds the SMTP dialer from mail settings.
func NewDialer(cfg config.MailConfig) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// Handle emails the patient about a booked or cancelled appointment.
func (s *Service) Handle(ctx context.Context, msg *messaging.Message) error {
	evt, err := event.Decode(msg)
	if err != nil {
		return err
	}

	m, err := s.compose(evt)
	if err != nil {
		return err
	}
	if m == nil {
		s.logger.Debug("no notification for event", "type", evt.Type)
		return nil
	}

	if err := s.mailer.DialAndSend(m); err != nil {
		s.metrics.NotificationsSent.WithLabelValues(evt.Type, "failed").Inc()
		return fmt.Errorf("failed to send %s email: %w", evt.Type, err)
	}

	s.metrics.NotificationsSent.WithLabelValues(evt.Type, "sent").Inc()
	s.logger.Info("notification sent", "type", evt.Type, "appointment_id", evt.AppointmentID.String())
	return nil
}

func (s *Service) compose(evt *model.AppointmentEvent) (*gomail.Message, error) {
	if evt.Patient.Email == "" {
		return nil, fmt.Errorf("event %s has no patient email", evt.ID)
	}

	var subject, body string
	switch evt.Type {
	case model.EventAppointmentBooked:
		subject = "Appointment confirmed"
		body = fmt.Sprintf("Hello %s,\n\nYour appointment with %s on %s at %s is confirmed.\nFee: %.2f\n",
			evt.Patient.Name, evt.Doctor.Name, evt.SlotDate, evt.SlotTime, evt.Amount)
	case model.EventAppointmentCancelled:
		subject = "Appointment cancelled"
		body = fmt.Sprintf("Hello %s,\n\nYour appointment with %s on %s at %s has been cancelled.\n",
			evt.Patient.Name, evt.Doctor.Name, evt.SlotDate, evt.SlotTime)
	default:
		return nil, nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", evt.Patient.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m, nil
}

// LogMailer stands in for SMTP when mail is disabled; it only logs recipients.
type LogMailer struct {
	Logger *logger.Logger
}

func (l LogMailer) DialAndSend(msgs ...*gomail.Message) error {
	for _, m := range msgs {
		l.Logger.Info("mail disabled; skipping send", "to", m.GetHeader("To"), "subject", m.GetHeader("Subject"))
	}
	return nil
}

// NewMailer returns an SMTP dialer, or a LogMailer when mail is disabled.
func NewMailer(cfg config.MailConfig, log *logger.Logger) Mailer {
	if !cfg.Enabled {
		return LogMailer{Logger: log}
	}
	return NewDialer(cfg)
}
