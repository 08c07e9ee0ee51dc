package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const appointmentColumns = `id, patient_id, doctor_id, slot_date, slot_time, patient_data,
	doctor_data, amount, created_at, cancelled, is_completed`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, slot_date, slot_time,
			patient_data, doctor_data, amount, created_at, cancelled, is_completed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.SlotDate,
		appointment.SlotTime,
		appointment.PatientData,
		appointment.DoctorData,
		appointment.Amount,
		appointment.CreatedAt,
		appointment.Cancelled,
		appointment.IsCompleted,
	)
	if isUniqueViolation(err) {
		// appointments_active_slot_idx: the triple is already held by an active appointment
		return repository.ErrSlotConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1 = 1`
	args := []interface{}{}
	argCount := 1

	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}

	if filters.Cancelled != nil {
		query += fmt.Sprintf(" AND cancelled = $%d", argCount)
		args = append(args, *filters.Cancelled)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	var flipped bool
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE appointments SET cancelled = TRUE WHERE id = $1 AND cancelled = FALSE`, id)
		if err != nil {
			return fmt.Errorf("failed to cancel appointment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 1 {
			flipped = true
			return nil
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
			return fmt.Errorf("failed to check appointment: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return nil
	})
	return flipped, err
}

func (r *appointmentRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND cancelled = FALSE
		ORDER BY created_at ASC`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListRecent(ctx context.Context, limit int) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY created_at DESC LIMIT $1`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Count(ctx context.Context) (int64, int64, error) {
	var counts struct {
		Total     int64 `db:"total"`
		Cancelled int64 `db:"cancelled"`
	}
	query := `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE cancelled) AS cancelled FROM appointments`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return 0, 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return counts.Total, counts.Cancelled, nil
}
