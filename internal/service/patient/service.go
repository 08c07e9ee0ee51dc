package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
	clinicvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type Service struct {
	repo     repository.PatientRepository
	hasher   security.PasswordHasher
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(repo repository.PatientRepository, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		validate: clinicvalidator.New(),
		logger:   log,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterPatientRequest) (*model.Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequest(clinicvalidator.Summary(err), err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	patient := &model.Patient{
		Base:         model.Base{ID: uuid.New()},
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("create patient: %w", err))
	}

	s.logger.Info("patient registered", "patient_id", patient.ID.String())
	patient.PasswordHash = ""
	return patient, nil
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("get patient: %w", err))
	}
	patient.PasswordHash = ""
	return patient, nil
}
