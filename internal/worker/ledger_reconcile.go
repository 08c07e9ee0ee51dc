package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// ReconcileReport summarises one pass.
type ReconcileReport struct {
	Doctors  int
	Missing  int
	Orphans  int
	Repaired int
	Removed  int
}

type slotKey struct {
	doctor uuid.UUID
	slot   model.Slot
}

// LedgerReconcileWorker compares each doctor's ledger with the doctor's active appointments.
// Missing entries are restored at once. An orphan entry is only removed when it was
// already an orphan or freshly restored on the previous pass, so a booking between
// Reserve and save is left alone.
type LedgerReconcileWorker struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	ledger       repository.SlotLedger
	interval     time.Duration
	repair       bool
	metrics      *metrics.Metrics
	logger       *logger.Logger

	suspects map[slotKey]struct{}
}

func NewLedgerReconcileWorker(doctors repository.DoctorRepository, appointments repository.AppointmentRepository,
	ledger repository.SlotLedger, interval time.Duration, repair bool, m *metrics.Metrics, log *logger.Logger) *LedgerReconcileWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &LedgerReconcileWorker{
		doctors:      doctors,
		appointments: appointments,
		ledger:       ledger,
		interval:     interval,
		repair:       repair,
		metrics:      m,
		logger:       log,
		suspects:     make(map[slotKey]struct{}),
	}
}

func (w *LedgerReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reconcile(ctx); err != nil {
				w.logger.Error(err, "ledger reconcile failed")
			}
		}
	}
}

// Reconcile runs one pass. It is not safe for concurrent use.
func (w *LedgerReconcileWorker) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()
	defer func() {
		w.metrics.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	doctors, err := w.doctors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	report := &ReconcileReport{Doctors: len(doctors)}
	suspects := make(map[slotKey]struct{})
	var errs []error

	for _, d := range doctors {
		if err := w.reconcileDoctor(ctx, d.ID, report, suspects); err != nil {
			errs = append(errs, fmt.Errorf("doctor %s: %w", d.ID, err))
		}
	}
	w.suspects = suspects

	w.metrics.LedgerDrift.WithLabelValues("missing").Set(float64(report.Missing))
	w.metrics.LedgerDrift.WithLabelValues("orphan").Set(float64(report.Orphans))
	if report.Missing > 0 || report.Orphans > 0 {
		w.logger.Warn("ledger drift detected",
			"doctors", report.Doctors,
			"missing", report.Missing,
			"orphans", report.Orphans,
			"repaired", report.Repaired,
			"removed", report.Removed,
		)
	} else {
		w.logger.Debug("ledger consistent", "doctors", report.Doctors)
	}

	return report, errors.Join(errs...)
}

func (w *LedgerReconcileWorker) reconcileDoctor(ctx context.Context, doctorID uuid.UUID, report *ReconcileReport, suspects map[slotKey]struct{}) error {
	booked, err := w.ledger.Booked(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	active, err := w.appointments.ListActiveByDoctor(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}

	expected := model.SlotLedger{}
	owners := make(map[model.Slot]uuid.UUID, len(active))
	for _, a := range active {
		expected.Add(a.SlotDate, a.SlotTime)
		owners[a.Slot()] = a.ID
	}

	for _, slot := range expected.Slots() {
		if booked.Has(slot.Date, slot.Time) {
			continue
		}
		report.Missing++
		if !w.repair {
			continue
		}
		// The appointment list may predate a cancel that has since released the slot.
		still, err := w.stillActive(ctx, owners[slot])
		if err != nil {
			return fmt.Errorf("recheck %s: %w", slot, err)
		}
		if !still {
			continue
		}
		err = w.ledger.Reserve(ctx, doctorID, slot.Date, slot.Time)
		if err != nil && !errors.Is(err, repository.ErrSlotConflict) {
			return fmt.Errorf("restore %s: %w", slot, err)
		}
		// A cancel landing after the recheck leaves this entry orphaned; the next pass removes it.
		suspects[slotKey{doctor: doctorID, slot: slot}] = struct{}{}
		report.Repaired++
		w.metrics.LedgerRepairs.Inc()
		w.logger.Info("restored missing ledger entry", "doctor_id", doctorID.String(), "slot", slot.String())
	}

	for _, slot := range booked.Slots() {
		if expected.Has(slot.Date, slot.Time) {
			continue
		}
		report.Orphans++
		key := slotKey{doctor: doctorID, slot: slot}
		if _, seen := w.suspects[key]; !seen || !w.repair {
			suspects[key] = struct{}{}
			continue
		}
		if err := w.ledger.Release(ctx, doctorID, slot.Date, slot.Time); err != nil && !errors.Is(err, repository.ErrSlotNotFound) {
			return fmt.Errorf("remove %s: %w", slot, err)
		}
		report.Removed++
		w.logger.Info("removed orphan ledger entry", "doctor_id", doctorID.String(), "slot", slot.String())
	}
	return nil
}

func (w *LedgerReconcileWorker) stillActive(ctx context.Context, id uuid.UUID) (bool, error) {
	apt, err := w.appointments.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return apt.Active(), nil
}
