package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

var (
	// ErrNotFound is returned when an identity does not resolve to a record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field (email) is already taken.
	ErrDuplicate = errors.New("record already exists")
	// ErrSlotConflict is returned by Reserve when the slot is already in the ledger.
	ErrSlotConflict = errors.New("slot already reserved")
	// ErrSlotNotFound is returned by Release when the slot is not in the ledger.
	ErrSlotNotFound = errors.New("slot not reserved")
)

// All repository interfaces in one file
type (
	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context) ([]*model.Doctor, error)
		SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
		// ToggleAvailability negates the flag in one atomic step and returns the new value.
		ToggleAvailability(ctx context.Context, id uuid.UUID) (bool, error)
		Count(ctx context.Context) (int64, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Count(ctx context.Context) (int64, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// MarkCancelled flips cancelled from false to true. It returns false when the
		// appointment was already cancelled, so only one caller ever releases the slot.
		MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
		ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		ListRecent(ctx context.Context, limit int) ([]*model.Appointment, error)
		Count(ctx context.Context) (total int64, cancelled int64, err error)
	}

	// SlotLedger is the per-doctor record of reserved slots. Reserve is atomic per
	// (doctor, date, time): among concurrent callers at most one gets nil.
	SlotLedger interface {
		IsBooked(ctx context.Context, doctorID uuid.UUID, date, label string) (bool, error)
		Reserve(ctx context.Context, doctorID uuid.UUID, date, label string) error
		Release(ctx context.Context, doctorID uuid.UUID, date, label string) error
		Booked(ctx context.Context, doctorID uuid.UUID) (model.SlotLedger, error)
	}
)
