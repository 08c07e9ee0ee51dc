package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	patients   repository.PatientRepository
	hasher     security.PasswordHasher
	jwtSvc     auth.JWTService
	adminEmail string
	adminPass  string
	adminID    uuid.UUID
	dummyHash  string
	logger     *logger.Logger
}

// NewService takes the admin credentials and token settings explicitly from cfg.
func NewService(cfg config.AuthConfig, patients repository.PatientRepository, hasher security.PasswordHasher, log *logger.Logger) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	dummy, err := hasher.Hash("placeholder-password")
	if err != nil {
		return nil, fmt.Errorf("prepare hasher: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	return &Service{
		patients:   patients,
		hasher:     hasher,
		jwtSvc:     auth.NewJWTService(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL),
		adminEmail: email,
		adminPass:  cfg.AdminPassword,
		adminID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("admin:"+email)),
		dummyHash:  dummy,
		logger:     log,
	}, nil
}

func (s *Service) LoginPatient(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	patient, err := s.patients.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal(fmt.Errorf("lookup patient: %w", err))
		}
		// keep timing similar for unknown emails
		_ = s.hasher.Compare(s.dummyHash, req.Password)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(patient.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	return s.IssueToken(model.Principal{Subject: patient.ID, Email: patient.Email, Role: model.RolePatient})
}

func (s *Service) LoginAdmin(_ context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPass)) == 1
	if !emailOK || !passOK {
		s.logger.Warn("admin login rejected")
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	return s.IssueToken(model.Principal{Subject: s.adminID, Email: s.adminEmail, Role: model.RoleAdmin})
}

func (s *Service) IssueToken(p model.Principal) (*model.TokenResponse, error) {
	token, expires, err := s.jwtSvc.GenerateAccessToken(p)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(expires).Seconds()),
	}, nil
}

func (s *Service) ValidateToken(_ context.Context, token string) (*model.Principal, error) {
	p, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return p, nil
}
