package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Reserve appends the label to the date's set in one conditional UPDATE. The row lock taken
// by UPDATE makes a concurrent second writer re-check the predicate against the committed
// row, so only one of them matches.
func (l *slotLedger) Reserve(ctx context.Context, doctorID uuid.UUID, date, label string) error {
	query := `
		UPDATE doctors
		SET slots_booked = jsonb_set(
			slots_booked,
			ARRAY[$2::text],
			COALESCE(slots_booked -> $2::text, '[]'::jsonb) || jsonb_build_array($3::text),
			true
		)
		WHERE id = $1
		AND NOT COALESCE(slots_booked -> $2::text, '[]'::jsonb) @> jsonb_build_array($3::text)
	`
	result, err := l.db.ExecContext(ctx, query, doctorID, date, label)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	exists, err := l.doctorExists(ctx, doctorID)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrSlotConflict
}

func (l *slotLedger) Release(ctx context.Context, doctorID uuid.UUID, date, label string) error {
	query := `
		UPDATE doctors
		SET slots_booked = jsonb_set(slots_booked, ARRAY[$2::text], (slots_booked -> $2::text) - $3::text)
		WHERE id = $1
		AND COALESCE(slots_booked -> $2::text, '[]'::jsonb) @> jsonb_build_array($3::text)
	`
	result, err := l.db.ExecContext(ctx, query, doctorID, date, label)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrSlotNotFound
	}
	return nil
}

func (l *slotLedger) IsBooked(ctx context.Context, doctorID uuid.UUID, date, label string) (bool, error) {
	query := `
		SELECT COALESCE(slots_booked -> $2::text, '[]'::jsonb) @> jsonb_build_array($3::text)
		FROM doctors WHERE id = $1
	`
	var booked bool
	if err := l.db.GetContext(ctx, &booked, query, doctorID, date, label); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", notFound(err))
	}
	return booked, nil
}

func (l *slotLedger) Booked(ctx context.Context, doctorID uuid.UUID) (model.SlotLedger, error) {
	var ledger model.SlotLedger
	if err := l.db.GetContext(ctx, &ledger, `SELECT slots_booked FROM doctors WHERE id = $1`, doctorID); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", notFound(err))
	}
	return ledger, nil
}

func (l *slotLedger) doctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	if err := l.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, doctorID); err != nil {
		return false, fmt.Errorf("failed to check doctor: %w", err)
	}
	return exists, nil
}
