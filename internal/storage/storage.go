package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/repository/redis"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Stores bundles the repositories selected by configuration together with
// the connections backing them.
type Stores struct {
	Doctors      repository.DoctorRepository
	Patients     repository.PatientRepository
	Appointments repository.AppointmentRepository
	Ledger       repository.SlotLedger

	DB    *sqlx.DB
	Redis *goredis.Client
}

// Open connects the configured storage and ledger backends.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.DB = db
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				s.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("database schema applied")
		}
		s.Doctors = postgres.NewDoctorRepository(db)
		s.Patients = postgres.NewPatientRepository(db)
		s.Appointments = postgres.NewAppointmentRepository(db)
	case config.StorageMemory:
		store := memory.NewStore()
		s.Doctors = store.Doctors()
		s.Patients = store.Patients()
		s.Appointments = store.Appointments()
		s.Ledger = store.Ledger()
		log.Warn("using in-memory storage; records are lost on restart")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.LedgerDriver() {
	case config.LedgerPostgres:
		s.Ledger = postgres.NewSlotLedger(s.DB)
	case config.LedgerRedis:
		client, err := s.RedisClient(ctx, cfg.Redis)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Ledger = redis.NewSlotLedger(client)
	case config.LedgerMemory:
	}

	log.Info("storage ready", "storage", cfg.Storage.Driver, "ledger", cfg.LedgerDriver())
	return s, nil
}

// RedisClient returns the shared Redis client, connecting on first use.
func (s *Stores) RedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if s.Redis != nil {
		return s.Redis, nil
	}
	client, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.Redis = client
	return client, nil
}

// Checkers returns readiness probes for every open connection.
func (s *Stores) Checkers() []health.Checker {
	var checkers []health.Checker
	if s.DB != nil {
		checkers = append(checkers, health.CheckFunc("database", s.DB.PingContext))
	}
	if s.Redis != nil {
		client := s.Redis
		checkers = append(checkers, health.CheckFunc("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
	return checkers
}

func (s *Stores) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}
