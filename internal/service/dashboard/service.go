package dashboard

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Service aggregates committed records. It never touches the slot ledger.
type Service struct {
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
}

func NewService(doctors repository.DoctorRepository, patients repository.PatientRepository, appointments repository.AppointmentRepository) *Service {
	return &Service{
		doctors:      doctors,
		patients:     patients,
		appointments: appointments,
	}
}

// Summary counts cancelled appointments in AppointmentCount and reports them again in CancelledCount.
func (s *Service) Summary(ctx context.Context) (*model.DashboardSummary, error) {
	doctors, err := s.doctors.Count(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("count doctors: %w", err))
	}
	patients, err := s.patients.Count(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("count patients: %w", err))
	}
	total, cancelled, err := s.appointments.Count(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("count appointments: %w", err))
	}
	recent, err := s.appointments.ListRecent(ctx, model.DashboardRecentLimit)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list recent appointments: %w", err))
	}

	return &model.DashboardSummary{
		DoctorCount:        doctors,
		PatientCount:       patients,
		AppointmentCount:   total,
		CancelledCount:     cancelled,
		CountingPolicy:     model.CountingPolicyIncludesCancelled,
		RecentAppointments: recent,
	}, nil
}
