package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
	clinicvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

const listCacheKey = "doctors:list"

type Service struct {
	repo     repository.DoctorRepository
	ledger   repository.SlotLedger
	hasher   security.PasswordHasher
	cache    *cache.Cache
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewService caches the public doctor list for cacheTTL. A zero TTL disables caching.
func NewService(repo repository.DoctorRepository, ledger repository.SlotLedger, hasher security.PasswordHasher,
	cacheTTL time.Duration, m *metrics.Metrics, log *logger.Logger) *Service {
	var c *cache.Cache
	if cacheTTL > 0 {
		c = cache.New(cacheTTL, 2*cacheTTL)
	}
	return &Service{
		repo:     repo,
		ledger:   ledger,
		hasher:   hasher,
		cache:    c,
		validate: clinicvalidator.New(),
		metrics:  m,
		logger:   log,
	}
}

func (s *Service) AddDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequest(clinicvalidator.Summary(err), err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	doctor := &model.Doctor{
		Base:           model.Base{ID: uuid.New()},
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:   hash,
		Image:          req.Image,
		Specialization: req.Specialization,
		Degree:         req.Degree,
		Experience:     req.Experience,
		About:          req.About,
		Available:      *req.Available,
		Fee:            req.Fee,
		Address:        req.Address,
		SlotsBooked:    model.SlotLedger{},
	}

	if err := s.repo.Create(ctx, doctor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("doctor email already registered", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("create doctor: %w", err))
	}

	s.invalidate()
	s.logger.Info("doctor added", "doctor_id", doctor.ID.String())
	return doctor.Public(), nil
}

// ListDoctors returns every doctor without credentials or ledger.
func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	if s.cache != nil {
		if cached, found := s.cache.Get(listCacheKey); found {
			s.metrics.DoctorCacheRequests.WithLabelValues("hit").Inc()
			return cached.([]*model.Doctor), nil
		}
		s.metrics.DoctorCacheRequests.WithLabelValues("miss").Inc()
	}

	doctors, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list doctors: %w", err))
	}
	public := make([]*model.Doctor, len(doctors))
	for i, d := range doctors {
		public[i] = d.Public()
	}

	if s.cache != nil {
		s.cache.Set(listCacheKey, public, cache.DefaultExpiration)
	}
	return public, nil
}

// GetDoctor returns one doctor with the booked slots read from the ledger.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	booked, err := s.ledger.Booked(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	out := doctor.Public()
	out.SlotsBooked = booked
	return out, nil
}

// ToggleAvailability flips the doctor's availability and returns the new value.
func (s *Service) ToggleAvailability(ctx context.Context, id uuid.UUID) (*model.AvailabilityResponse, error) {
	available, err := s.repo.ToggleAvailability(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	s.invalidate()
	s.logger.Info("doctor availability changed", "doctor_id", id.String(), "available", available)
	return &model.AvailabilityResponse{DoctorID: id, Available: available, UpdatedAt: time.Now().UTC()}, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Delete(listCacheKey)
	}
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("doctor", err)
	}
	return apperrors.Internal(err)
}
