package model

// CountingPolicyIncludesCancelled means AppointmentCount counts cancelled appointments too.
const CountingPolicyIncludesCancelled = "includes_cancelled"

// DashboardRecentLimit caps RecentAppointments.
const DashboardRecentLimit = 5

type DashboardSummary struct {
	DoctorCount        int64          `json:"doctor_count"`
	PatientCount       int64          `json:"patient_count"`
	AppointmentCount   int64          `json:"appointment_count"`
	CancelledCount     int64          `json:"cancelled_count"`
	CountingPolicy     string         `json:"counting_policy"`
	RecentAppointments []*Appointment `json:"recent_appointments"`
}
