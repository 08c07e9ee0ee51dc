package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.AppointmentEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt *model.AppointmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// failingAppointments fails Create with err.
type failingAppointments struct {
	repository.AppointmentRepository
	err error
}

func (f *failingAppointments) Create(context.Context, *model.Appointment) error {
	return f.err
}

// failingRelease fails Release with err.
type failingRelease struct {
	repository.SlotLedger
	err error
}

func (f *failingRelease) Release(context.Context, uuid.UUID, string, string) error {
	return f.err
}

type fixture struct {
	store   *memory.Store
	events  *recordingPublisher
	svc     *Service
	doctor  *model.Doctor
	patient *model.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	doctor := &model.Doctor{Name: "Dr. Strange", Email: "strange@clinic.test", Available: true, Fee: 75}
	require.NoError(t, store.Doctors().Create(ctx, doctor))
	patient := &model.Patient{Name: "Peter Parker", Email: "peter@example.com"}
	require.NoError(t, store.Patients().Create(ctx, patient))

	f := &fixture{store: store, events: &recordingPublisher{}, doctor: doctor, patient: patient}
	f.svc = f.service(store.Appointments(), store.Ledger())
	return f
}

func (f *fixture) service(appointments repository.AppointmentRepository, ledger repository.SlotLedger) *Service {
	return NewService(f.store.Doctors(), f.store.Patients(), appointments, ledger, f.events, metrics.New("test"), logger.Nop())
}

func (f *fixture) request(date, label string) *model.BookAppointmentRequest {
	return &model.BookAppointmentRequest{PatientID: f.patient.ID, DoctorID: f.doctor.ID, SlotDate: date, SlotTime: label}
}

func (f *fixture) ledger(t *testing.T) model.SlotLedger {
	t.Helper()
	booked, err := f.store.Ledger().Booked(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	return booked
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), "unexpected error: %v", err)
}

func TestBookCancelRebookScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)
	assert.Equal(t, 75.0, first.Amount)
	assert.Equal(t, "10_05_2024", first.SlotDate)
	assert.Equal(t, "10:00 AM", first.SlotTime)
	assert.Equal(t, model.SlotLedger{"10_05_2024": {"10:00 AM"}}, f.ledger(t))

	_, err = f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	assertCode(t, err, apperrors.ErrSlotAlreadyBooked)

	cancelled, err := f.svc.CancelAppointment(ctx, first.AppointmentID)
	require.NoError(t, err)
	assert.True(t, cancelled.Success)
	assert.Equal(t, model.SlotLedger{"10_05_2024": {}}, f.ledger(t))

	second, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)
	assert.NotEqual(t, first.AppointmentID, second.AppointmentID)
	assert.Equal(t, model.SlotLedger{"10_05_2024": {"10:00 AM"}}, f.ledger(t))

	assert.Equal(t, []string{
		model.EventAppointmentBooked,
		model.EventAppointmentCancelled,
		model.EventAppointmentBooked,
	}, f.events.types())
}

func TestBookStoresSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)

	apt, err := f.store.Appointments().Get(ctx, resp.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, apt.PatientData.ID)
	assert.Equal(t, "Peter Parker", apt.PatientData.Name)
	assert.Equal(t, "Dr. Strange", apt.DoctorData.Name)
	assert.Equal(t, 75.0, apt.DoctorData.Fee)
	assert.False(t, apt.Cancelled)
	assert.False(t, apt.IsCompleted)
	assert.False(t, apt.CreatedAt.IsZero())
}

func TestBookNormalizesLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.BookAppointment(ctx, f.request("1_5_2024", "9:30 am"))
	require.NoError(t, err)
	assert.Equal(t, "01_05_2024", resp.SlotDate)
	assert.Equal(t, "09:30 AM", resp.SlotTime)

	_, err = f.svc.BookAppointment(ctx, f.request("01_05_2024", "09:30 AM"))
	assertCode(t, err, apperrors.ErrSlotAlreadyBooked)
}

func TestBookConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 50
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
			switch {
			case err == nil:
				wins.Add(1)
			case apperrors.CodeOf(err) == apperrors.ErrSlotAlreadyBooked:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(attempts-1), conflicts.Load())

	active, err := f.store.Appointments().ListActiveByDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestBookConcurrentDistinctSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	labels := []string{"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM"}
	var wg sync.WaitGroup
	for _, label := range labels {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			_, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", label))
			assert.NoError(t, err)
		}(label)
	}
	wg.Wait()

	assert.Equal(t, len(labels), f.ledger(t).Len())
}

func TestBookRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown doctor", func(t *testing.T) {
		req := f.request("10_05_2024", "10:00 AM")
		req.DoctorID = uuid.New()
		_, err := f.svc.BookAppointment(ctx, req)
		assertCode(t, err, apperrors.ErrNotFound)
	})

	t.Run("unknown patient", func(t *testing.T) {
		req := f.request("10_05_2024", "10:00 AM")
		req.PatientID = uuid.New()
		_, err := f.svc.BookAppointment(ctx, req)
		assertCode(t, err, apperrors.ErrNotFound)
	})

	t.Run("malformed slot", func(t *testing.T) {
		_, err := f.svc.BookAppointment(ctx, f.request("2024-05-10", "10:00"))
		assertCode(t, err, apperrors.ErrBadRequest)
	})

	t.Run("doctor unavailable", func(t *testing.T) {
		require.NoError(t, f.store.Doctors().SetAvailability(ctx, f.doctor.ID, false))
		defer func() {
			require.NoError(t, f.store.Doctors().SetAvailability(ctx, f.doctor.ID, true))
		}()
		_, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
		assertCode(t, err, apperrors.ErrDoctorUnavailable)
	})

	assert.Equal(t, 0, f.ledger(t).Len())
	total, _, err := f.store.Appointments().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.events.types())
}

func TestBookPersistenceFailureReleasesSlot(t *testing.T) {
	f := newFixture(t)
	svc := f.service(&failingAppointments{AppointmentRepository: f.store.Appointments(), err: errors.New("disk full")}, f.store.Ledger())

	_, err := svc.BookAppointment(context.Background(), f.request("10_05_2024", "10:00 AM"))
	assertCode(t, err, apperrors.ErrPersistence)
	assert.Equal(t, 0, f.ledger(t).Len())
	assert.Empty(t, f.events.types())
}

func TestBookRollbackFailureIsInconsistent(t *testing.T) {
	f := newFixture(t)
	ledger := &failingRelease{SlotLedger: f.store.Ledger(), err: errors.New("connection reset")}
	svc := f.service(&failingAppointments{AppointmentRepository: f.store.Appointments(), err: errors.New("disk full")}, ledger)

	_, err := svc.BookAppointment(context.Background(), f.request("10_05_2024", "10:00 AM"))
	assertCode(t, err, apperrors.ErrInconsistentState)
	assert.True(t, f.ledger(t).Has("10_05_2024", "10:00 AM"))
}

func TestBookKeepsReservationForExistingActiveAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)

	// Drop the ledger entry behind the service's back.
	require.NoError(t, f.store.Ledger().Release(ctx, f.doctor.ID, "10_05_2024", "10:00 AM"))

	_, err = f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	assertCode(t, err, apperrors.ErrSlotAlreadyBooked)
	assert.True(t, f.ledger(t).Has("10_05_2024", "10:00 AM"))

	apt, err := f.store.Appointments().Get(ctx, resp.AppointmentID)
	require.NoError(t, err)
	assert.True(t, apt.Active())
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, first.AppointmentID)
	require.NoError(t, err)

	// A later booking of the same slot must survive a repeated cancel of the first.
	_, err = f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)

	resp, err := f.svc.CancelAppointment(ctx, first.AppointmentID)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, f.ledger(t).Has("10_05_2024", "10:00 AM"))
}

func TestCancelConcurrentReleasesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.CancelAppointment(ctx, booked.AppointmentID)
			assert.NoError(t, err)
			assert.True(t, resp.Success)
		}()
	}
	wg.Wait()

	var cancelled int
	for _, typ := range f.events.types() {
		if typ == model.EventAppointmentCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, 0, f.ledger(t).Len())
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelAppointment(context.Background(), uuid.New())
	assertCode(t, err, apperrors.ErrNotFound)
}

func TestCancelMissingLedgerEntrySucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)
	require.NoError(t, f.store.Ledger().Release(ctx, f.doctor.ID, "10_05_2024", "10:00 AM"))

	resp, err := f.svc.CancelAppointment(ctx, booked.AppointmentID)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	apt, err := f.store.Appointments().Get(ctx, booked.AppointmentID)
	require.NoError(t, err)
	assert.True(t, apt.Cancelled)
}

func TestCancelReleaseErrorIsInconsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)

	svc := f.service(f.store.Appointments(), &failingRelease{SlotLedger: f.store.Ledger(), err: errors.New("timeout")})
	_, err = svc.CancelAppointment(ctx, booked.AppointmentID)
	assertCode(t, err, apperrors.ErrInconsistentState)

	// The status flip is durable even though the release failed.
	apt, err := f.store.Appointments().Get(ctx, booked.AppointmentID)
	require.NoError(t, err)
	assert.True(t, apt.Cancelled)
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	_, err := f.svc.BookAppointment(context.Background(), f.request("10_05_2024", "10:00 AM"))
	assert.NoError(t, err)
}

func TestLedgerMatchesActiveAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	labels := []string{"09:00 AM", "10:00 AM", "11:00 AM", "12:00 PM", "01:00 PM"}
	dates := []string{"10_05_2024", "11_05_2024"}
	var ids []uuid.UUID
	for _, date := range dates {
		for _, label := range labels {
			resp, err := f.svc.BookAppointment(ctx, f.request(date, label))
			require.NoError(t, err)
			ids = append(ids, resp.AppointmentID)
		}
	}
	for i, id := range ids {
		if i%3 == 0 {
			_, err := f.svc.CancelAppointment(ctx, id)
			require.NoError(t, err)
		}
	}

	active, err := f.store.Appointments().ListActiveByDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	want := model.SlotLedger{}
	for _, a := range active {
		want.Add(a.SlotDate, a.SlotTime)
	}
	assert.ElementsMatch(t, want.Slots(), f.ledger(t).Slots())
}

func TestGetAppointmentScopedToPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.request("10_05_2024", "10:00 AM"))
	require.NoError(t, err)

	owner := model.Principal{Subject: f.patient.ID, Role: model.RolePatient}
	apt, err := f.svc.GetAppointment(ctx, owner, booked.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, booked.AppointmentID, apt.ID)

	stranger := model.Principal{Subject: uuid.New(), Role: model.RolePatient}
	_, err = f.svc.GetAppointment(ctx, stranger, booked.AppointmentID)
	assertCode(t, err, apperrors.ErrNotFound)

	admin := model.Principal{Subject: uuid.New(), Role: model.RoleAdmin}
	_, err = f.svc.GetAppointment(ctx, admin, booked.AppointmentID)
	assert.NoError(t, err)

	list, err := f.svc.ListPatientAppointments(ctx, f.patient.ID, model.Pagination{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
