package postgres

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// newTestDB connects to CLINIC_TEST_DATABASE_DSN, a disposable database.
func newTestDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("CLINIC_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("CLINIC_TEST_DATABASE_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seed(t *testing.T, db *sqlx.DB) (*model.Doctor, *model.Patient) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()

	doctor := &model.Doctor{
		Name: "Dr. House", Email: "house-" + suffix + "@clinic.test", PasswordHash: "x",
		Specialization: "Diagnostics", Degree: "MD", Experience: "20 Years", About: "Grumpy",
		Available: true, Fee: 120,
	}
	require.NoError(t, NewDoctorRepository(db).Create(ctx, doctor))

	patient := &model.Patient{Name: "Wilson", Email: "wilson-" + suffix + "@example.com", PasswordHash: "x"}
	require.NoError(t, NewPatientRepository(db).Create(ctx, patient))
	return doctor, patient
}

func TestSlotLedgerReserveIsExclusive(t *testing.T) {
	db := newTestDB(t)
	doctor, _ := seed(t, db)
	ledger := NewSlotLedger(db)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Reserve(ctx, doctor.ID, "10_05_2024", "10:00 AM"); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, repository.ErrSlotConflict)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	booked, err := ledger.Booked(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotLedger{"10_05_2024": {"10:00 AM"}}, booked)

	require.NoError(t, ledger.Release(ctx, doctor.ID, "10_05_2024", "10:00 AM"))
	assert.ErrorIs(t, ledger.Release(ctx, doctor.ID, "10_05_2024", "10:00 AM"), repository.ErrSlotNotFound)

	booked, err = ledger.Booked(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotLedger{"10_05_2024": {}}, booked)

	assert.ErrorIs(t, ledger.Reserve(ctx, uuid.New(), "10_05_2024", "10:00 AM"), repository.ErrNotFound)
}

func TestAppointmentActiveSlotIndex(t *testing.T) {
	db := newTestDB(t)
	doctor, patient := seed(t, db)
	repo := NewAppointmentRepository(db)
	ctx := context.Background()

	newAppointment := func() *model.Appointment {
		return &model.Appointment{
			PatientID: patient.ID, DoctorID: doctor.ID,
			SlotDate: "12_05_2024", SlotTime: "11:00 AM",
			PatientData: patient.Snapshot(), DoctorData: doctor.Snapshot(), Amount: doctor.Fee,
		}
	}

	first := newAppointment()
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newAppointment()), repository.ErrSlotConflict)

	flipped, err := repo.MarkCancelled(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, flipped)
	flipped, err = repo.MarkCancelled(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	require.NoError(t, repo.Create(ctx, newAppointment()))

	active, err := repo.ListActiveByDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, doctor.Name, active[0].DoctorData.Name)
}

func TestDoctorToggleAvailabilityIsAtomic(t *testing.T) {
	db := newTestDB(t)
	doctor, _ := seed(t, db)
	repo := NewDoctorRepository(db)
	ctx := context.Background()

	var offs atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			available, err := repo.ToggleAvailability(ctx, doctor.ID)
			if assert.NoError(t, err) && !available {
				offs.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), offs.Load())

	d, err := repo.Get(ctx, doctor.ID)
	require.NoError(t, err)
	assert.True(t, d.Available)

	_, err = repo.ToggleAvailability(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
