package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	clinicvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type Service struct {
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
	ledger       repository.SlotLedger
	events       event.Publisher
	validate     *validator.Validate
	metrics      *metrics.Metrics
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	appointments repository.AppointmentRepository,
	ledger repository.SlotLedger,
	events event.Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		doctors:      doctors,
		patients:     patients,
		appointments: appointments,
		ledger:       ledger,
		events:       events,
		validate:     clinicvalidator.New(),
		metrics:      m,
		logger:       log,
		now:          time.Now,
	}
}

// BookAppointment reserves the slot and records the appointment. The ledger
// reservation is the only point of contention; a lost race fails immediately.
func (s *Service) BookAppointment(ctx context.Context, req *model.BookAppointmentRequest) (*model.BookAppointmentResponse, error) {
	start := time.Now()
	resp, result, err := s.book(ctx, req)
	s.metrics.BookingResults.WithLabelValues(result).Inc()
	s.metrics.BookingLatency.Observe(time.Since(start).Seconds())
	return resp, err
}

func (s *Service) book(ctx context.Context, req *model.BookAppointmentRequest) (*model.BookAppointmentResponse, string, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, metrics.ResultInvalid, apperrors.BadRequest(clinicvalidator.Summary(err), err)
	}
	slot, err := model.NormalizeSlot(req.SlotDate, req.SlotTime)
	if err != nil {
		return nil, metrics.ResultInvalid, apperrors.BadRequest(err.Error(), err)
	}

	doctor, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, metrics.ResultNotFound, lookupError("doctor", err)
	}
	patient, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, metrics.ResultNotFound, lookupError("patient", err)
	}
	if !doctor.Available {
		return nil, metrics.ResultDoctorUnavailable, apperrors.DoctorUnavailable()
	}

	if err := s.ledger.Reserve(ctx, doctor.ID, slot.Date, slot.Time); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotConflict):
			return nil, metrics.ResultSlotTaken, apperrors.SlotAlreadyBooked(err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, metrics.ResultNotFound, apperrors.NotFound("doctor", err)
		}
		return nil, metrics.ResultPersistence, apperrors.Persistence(fmt.Errorf("reserve slot: %w", err))
	}

	apt := &model.Appointment{
		ID:          uuid.New(),
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		SlotDate:    slot.Date,
		SlotTime:    slot.Time,
		PatientData: patient.Snapshot(),
		DoctorData:  doctor.Snapshot(),
		Amount:      doctor.Fee,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.appointments.Create(ctx, apt); err != nil {
		return s.rollback(ctx, apt, err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID.String(),
		"doctor_id", apt.DoctorID.String(),
		"slot", slot.String(),
	)
	s.publish(ctx, model.EventAppointmentBooked, apt)

	return &model.BookAppointmentResponse{
		AppointmentID: apt.ID,
		Amount:        apt.Amount,
		SlotDate:      apt.SlotDate,
		SlotTime:      apt.SlotTime,
	}, metrics.ResultBooked, nil
}

// rollback undoes the reservation after a failed save.
//
// An ErrSlotConflict from the store means an active appointment already holds
// this slot while the ledger had no entry for it. The fresh reservation now
// describes that appointment, so it is kept rather than released.
func (s *Service) rollback(ctx context.Context, apt *model.Appointment, saveErr error) (*model.BookAppointmentResponse, string, error) {
	if errors.Is(saveErr, repository.ErrSlotConflict) {
		s.logger.Warn("ledger was missing an active slot; keeping reservation",
			"doctor_id", apt.DoctorID.String(),
			"slot", apt.Slot().String(),
		)
		s.metrics.BookingRollbacks.WithLabelValues("kept").Inc()
		return nil, metrics.ResultSlotTaken, apperrors.SlotAlreadyBooked(saveErr)
	}

	if err := s.ledger.Release(ctx, apt.DoctorID, apt.SlotDate, apt.SlotTime); err != nil {
		s.metrics.BookingRollbacks.WithLabelValues("failed").Inc()
		s.logger.Error(err, "rollback of slot reservation failed",
			"doctor_id", apt.DoctorID.String(),
			"slot", apt.Slot().String(),
		)
		return nil, metrics.ResultInconsistent, apperrors.InconsistentState(errors.Join(saveErr, err))
	}

	s.metrics.BookingRollbacks.WithLabelValues("released").Inc()
	s.logger.Error(saveErr, "failed to save appointment; reservation released",
		"doctor_id", apt.DoctorID.String(),
		"slot", apt.Slot().String(),
	)
	return nil, metrics.ResultPersistence, apperrors.Persistence(saveErr)
}

// CancelAppointment marks the appointment cancelled, then releases its slot.
// Repeated calls succeed without touching the ledger again.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*model.CancelAppointmentResponse, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		s.metrics.Cancellations.WithLabelValues("error").Inc()
		return nil, lookupError("appointment", err)
	}
	if apt.Cancelled {
		s.metrics.Cancellations.WithLabelValues("already_cancelled").Inc()
		return &model.CancelAppointmentResponse{Success: true}, nil
	}

	flipped, err := s.appointments.MarkCancelled(ctx, id)
	if err != nil {
		s.metrics.Cancellations.WithLabelValues("error").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("mark cancelled: %w", err))
	}
	if !flipped {
		s.metrics.Cancellations.WithLabelValues("already_cancelled").Inc()
		return &model.CancelAppointmentResponse{Success: true}, nil
	}
	apt.Cancelled = true

	if err := s.ledger.Release(ctx, apt.DoctorID, apt.SlotDate, apt.SlotTime); err != nil {
		if !errors.Is(err, repository.ErrSlotNotFound) {
			s.metrics.Cancellations.WithLabelValues("error").Inc()
			s.logger.Error(err, "appointment cancelled but slot release failed",
				"appointment_id", id.String(),
				"slot", apt.Slot().String(),
			)
			return nil, apperrors.InconsistentState(err)
		}
		// The appointment status is authoritative; the reconciler settles the ledger.
		s.metrics.LedgerReleaseMisses.Inc()
		s.logger.Warn("cancelled slot was not in the ledger",
			"appointment_id", id.String(),
			"doctor_id", apt.DoctorID.String(),
			"slot", apt.Slot().String(),
		)
	}

	s.metrics.Cancellations.WithLabelValues("cancelled").Inc()
	s.logger.Info("appointment cancelled", "appointment_id", id.String())
	s.publish(ctx, model.EventAppointmentCancelled, apt)

	return &model.CancelAppointmentResponse{Success: true}, nil
}

// GetAppointment returns the appointment if it belongs to the principal. Admins see all.
func (s *Service) GetAppointment(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, lookupError("appointment", err)
	}
	if principal.Role != model.RoleAdmin && apt.PatientID != principal.Subject {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return apt, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, page model.Pagination) ([]*model.Appointment, error) {
	apts, err := s.appointments.List(ctx, &model.AppointmentFilters{PatientID: patientID, Pagination: page})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list appointments: %w", err))
	}
	return apts, nil
}

func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	apts, err := s.appointments.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list appointments: %w", err))
	}
	return apts, nil
}

func (s *Service) publish(ctx context.Context, eventType string, apt *model.Appointment) {
	evt := &model.AppointmentEvent{
		ID:            uuid.New(),
		Type:          eventType,
		AppointmentID: apt.ID,
		DoctorID:      apt.DoctorID,
		SlotDate:      apt.SlotDate,
		SlotTime:      apt.SlotTime,
		Amount:        apt.Amount,
		Patient:       apt.PatientData,
		Doctor:        apt.DoctorData,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Error(err, "failed to publish event", "type", eventType, "appointment_id", apt.ID.String())
	}
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(fmt.Errorf("get %s: %w", resource, err))
}
