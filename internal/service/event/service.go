package event

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Publisher emits appointment lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt *model.AppointmentEvent) error
}

type EventService struct {
	broker  messaging.Broker
	channel string
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewEventService(broker messaging.Broker, channel string, m *metrics.Metrics, log *logger.Logger) *EventService {
	return &EventService{
		broker:  broker,
		channel: channel,
		metrics: m,
		logger:  log,
	}
}

func (s *EventService) Publish(ctx context.Context, evt *model.AppointmentEvent) error {
	msg, err := messaging.NewMessage(evt.ID.String(), evt.Type, evt, evt.OccurredAt)
	if err != nil {
		return err
	}

	if err := s.broker.Publish(ctx, s.channel, msg); err != nil {
		s.metrics.EventsPublished.WithLabelValues(evt.Type, "failed").Inc()
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}

	s.metrics.EventsPublished.WithLabelValues(evt.Type, "ok").Inc()
	s.logger.Debug("event published", "type", evt.Type, "appointment_id", evt.AppointmentID.String())
	return nil
}

// Decode extracts an AppointmentEvent from a broker message.
func Decode(msg *messaging.Message) (*model.AppointmentEvent, error) {
	var evt model.AppointmentEvent
	if err := msg.Decode(&evt); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", msg.Type, err)
	}
	return &evt, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, *model.AppointmentEvent) error { return nil }
