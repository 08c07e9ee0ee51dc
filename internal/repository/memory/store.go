// Package memory holds process-local implementations of the repositories. It backs the
// "memory" storage driver used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Store keeps doctors, patients and appointments in maps. Each doctor's slot ledger is
// guarded by its own mutex so reservations for different doctors never contend.
type Store struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]*doctorEntry
	patients     map[uuid.UUID]*model.Patient
	appointments map[uuid.UUID]*model.Appointment
}

type doctorEntry struct {
	mu     sync.Mutex
	doctor model.Doctor
}

func NewStore() *Store {
	return &Store{
		doctors:      make(map[uuid.UUID]*doctorEntry),
		patients:     make(map[uuid.UUID]*model.Patient),
		appointments: make(map[uuid.UUID]*model.Appointment),
	}
}

func (s *Store) Doctors() repository.DoctorRepository {
	return (*doctorRepository)(s)
}

func (s *Store) Patients() repository.PatientRepository {
	return (*patientRepository)(s)
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return (*appointmentRepository)(s)
}

func (s *Store) Ledger() repository.SlotLedger {
	return (*slotLedger)(s)
}

func (s *Store) doctor(id uuid.UUID) (*doctorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return entry, nil
}

type doctorRepository Store

func (r *doctorRepository) Create(_ context.Context, doctor *model.Doctor) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.doctors {
		if strings.EqualFold(e.doctor.Email, doctor.Email) {
			return repository.ErrDuplicate
		}
	}
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	if doctor.SlotsBooked == nil {
		doctor.SlotsBooked = model.SlotLedger{}
	}
	doctor.CreatedAt = time.Now()

	stored := *doctor
	stored.SlotsBooked = doctor.SlotsBooked.Clone()
	s.doctors[doctor.ID] = &doctorEntry{doctor: stored}
	return nil
}

func (r *doctorRepository) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	entry, err := (*Store)(r).doctor(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return copyDoctor(&entry.doctor), nil
}

func (r *doctorRepository) List(_ context.Context) ([]*model.Doctor, error) {
	s := (*Store)(r)
	s.mu.RLock()
	entries := make([]*doctorEntry, 0, len(s.doctors))
	for _, e := range s.doctors {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	doctors := make([]*model.Doctor, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		doctors = append(doctors, copyDoctor(&e.doctor))
		e.mu.Unlock()
	}
	sort.Slice(doctors, func(i, j int) bool {
		return doctors[i].CreatedAt.After(doctors[j].CreatedAt)
	})
	return doctors, nil
}

func (r *doctorRepository) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	entry, err := (*Store)(r).doctor(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	entry.doctor.Available = available
	entry.mu.Unlock()
	return nil
}

func (r *doctorRepository) ToggleAvailability(_ context.Context, id uuid.UUID) (bool, error) {
	entry, err := (*Store)(r).doctor(id)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.doctor.Available = !entry.doctor.Available
	return entry.doctor.Available, nil
}

func (r *doctorRepository) Count(_ context.Context) (int64, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.doctors)), nil
}

func copyDoctor(d *model.Doctor) *model.Doctor {
	out := *d
	out.SlotsBooked = d.SlotsBooked.Clone()
	return &out
}

type patientRepository Store

func (r *patientRepository) Create(_ context.Context, patient *model.Patient) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	patient.Email = strings.ToLower(patient.Email)
	for _, p := range s.patients {
		if p.Email == patient.Email {
			return repository.ErrDuplicate
		}
	}
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()

	stored := *patient
	s.patients[patient.ID] = &stored
	return nil
}

func (r *patientRepository) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *patientRepository) GetByEmail(_ context.Context, email string) (*model.Patient, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, p := range s.patients {
		if p.Email == email {
			out := *p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *patientRepository) Count(_ context.Context) (int64, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.patients)), nil
}
