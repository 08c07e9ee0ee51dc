package dashboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

func TestSummary(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var doctors []*model.Doctor
	for i := 0; i < 3; i++ {
		d := &model.Doctor{Name: fmt.Sprintf("Doctor %d", i), Email: fmt.Sprintf("d%d@clinic.test", i), Available: true, Fee: 50}
		require.NoError(t, store.Doctors().Create(ctx, d))
		doctors = append(doctors, d)
	}
	var patients []*model.Patient
	for i := 0; i < 5; i++ {
		p := &model.Patient{Name: fmt.Sprintf("Patient %d", i), Email: fmt.Sprintf("p%d@example.com", i)}
		require.NoError(t, store.Patients().Create(ctx, p))
		patients = append(patients, p)
	}

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var appointments []*model.Appointment
	for i := 0; i < 7; i++ {
		a := &model.Appointment{
			PatientID: patients[i%5].ID,
			DoctorID:  doctors[i%3].ID,
			SlotDate:  "10_05_2024",
			SlotTime:  fmt.Sprintf("%02d:00 AM", i+1),
			Amount:    50,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.Appointments().Create(ctx, a))
		appointments = append(appointments, a)
	}
	for _, a := range appointments[:2] {
		_, err := store.Appointments().MarkCancelled(ctx, a.ID)
		require.NoError(t, err)
	}

	summary, err := NewService(store.Doctors(), store.Patients(), store.Appointments()).Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.DoctorCount)
	assert.Equal(t, int64(5), summary.PatientCount)
	assert.Equal(t, int64(7), summary.AppointmentCount)
	assert.Equal(t, int64(2), summary.CancelledCount)
	assert.Equal(t, model.CountingPolicyIncludesCancelled, summary.CountingPolicy)
	require.Len(t, summary.RecentAppointments, 5)

	// newest first
	assert.Equal(t, appointments[6].ID, summary.RecentAppointments[0].ID)
	assert.Equal(t, appointments[2].ID, summary.RecentAppointments[4].ID)
}

func TestSummaryEmpty(t *testing.T) {
	store := memory.NewStore()
	summary, err := NewService(store.Doctors(), store.Patients(), store.Appointments()).Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.AppointmentCount)
	assert.Empty(t, summary.RecentAppointments)
}
