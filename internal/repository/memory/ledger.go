package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type slotLedger Store

func (l *slotLedger) IsBooked(_ context.Context, doctorID uuid.UUID, date, label string) (bool, error) {
	entry, err := (*Store)(l).doctor(doctorID)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.doctor.SlotsBooked.Has(date, label), nil
}

func (l *slotLedger) Reserve(_ context.Context, doctorID uuid.UUID, date, label string) error {
	entry, err := (*Store)(l).doctor(doctorID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.doctor.SlotsBooked.Add(date, label) {
		return repository.ErrSlotConflict
	}
	return nil
}

func (l *slotLedger) Release(_ context.Context, doctorID uuid.UUID, date, label string) error {
	entry, err := (*Store)(l).doctor(doctorID)
	if err != nil {
		return repository.ErrSlotNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.doctor.SlotsBooked.Remove(date, label) {
		return repository.ErrSlotNotFound
	}
	return nil
}

func (l *slotLedger) Booked(_ context.Context, doctorID uuid.UUID) (model.SlotLedger, error) {
	entry, err := (*Store)(l).doctor(doctorID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.doctor.SlotsBooked.Clone(), nil
}
