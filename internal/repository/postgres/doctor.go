package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const doctorColumns = `id, name, email, password_hash, image, specialization, degree,
	experience, about, available, fee, address, slots_booked, created_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, name, email, password_hash, image, specialization, degree,
			experience, about, available, fee, address, slots_booked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	if doctor.SlotsBooked == nil {
		doctor.SlotsBooked = model.SlotLedger{}
	}
	doctor.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.Email,
		doctor.PasswordHash,
		doctor.Image,
		doctor.Specialization,
		doctor.Degree,
		doctor.Experience,
		doctor.About,
		doctor.Available,
		doctor.Fee,
		doctor.Address,
		doctor.SlotsBooked,
		doctor.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", notFound(err))
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY created_at DESC`
	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE doctors SET available = $1 WHERE id = $2`, available, id)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *doctorRepository) ToggleAvailability(ctx context.Context, id uuid.UUID) (bool, error) {
	var available bool
	err := r.db.GetContext(ctx, &available,
		`UPDATE doctors SET available = NOT available WHERE id = $1 RETURNING available`, id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle availability: %w", notFound(err))
	}
	return available, nil
}

func (r *doctorRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM doctors`); err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return n, nil
}
