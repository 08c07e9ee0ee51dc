package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type appointmentRepository Store

func (r *appointmentRepository) Create(_ context.Context, appointment *model.Appointment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.appointments {
		if a.Active() && a.DoctorID == appointment.DoctorID &&
			a.SlotDate == appointment.SlotDate && a.SlotTime == appointment.SlotTime {
			return repository.ErrSlotConflict
		}
	}
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = time.Now()
	}

	stored := *appointment
	s.appointments[appointment.ID] = &stored
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *appointmentRepository) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	matched := r.collect(func(a *model.Appointment) bool {
		if filters.PatientID != uuid.Nil && a.PatientID != filters.PatientID {
			return false
		}
		if filters.DoctorID != uuid.Nil && a.DoctorID != filters.DoctorID {
			return false
		}
		if filters.Cancelled != nil && a.Cancelled != *filters.Cancelled {
			return false
		}
		return true
	})
	sortNewestFirst(matched)

	start := filters.Offset()
	if start >= len(matched) {
		return []*model.Appointment{}, nil
	}
	end := start + filters.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (r *appointmentRepository) MarkCancelled(_ context.Context, id uuid.UUID) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if a.Cancelled {
		return false, nil
	}
	a.Cancelled = true
	return true, nil
}

func (r *appointmentRepository) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	active := r.collect(func(a *model.Appointment) bool {
		return a.DoctorID == doctorID && a.Active()
	})
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (r *appointmentRepository) ListRecent(_ context.Context, limit int) ([]*model.Appointment, error) {
	all := r.collect(func(*model.Appointment) bool { return true })
	sortNewestFirst(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *appointmentRepository) Count(_ context.Context) (int64, int64, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cancelled int64
	for _, a := range s.appointments {
		if a.Cancelled {
			cancelled++
		}
	}
	return int64(len(s.appointments)), cancelled, nil
}

func (r *appointmentRepository) collect(keep func(*model.Appointment) bool) []*model.Appointment {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*model.Appointment{}
	for _, a := range s.appointments {
		if keep(a) {
			c := *a
			out = append(out, &c)
		}
	}
	return out
}

func sortNewestFirst(appointments []*model.Appointment) {
	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].CreatedAt.After(appointments[j].CreatedAt)
	})
}
