package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentCancelled = "appointment.cancelled"
)

// AppointmentEvent is published after a booking or cancellation commits.
type AppointmentEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	DoctorID      uuid.UUID       `json:"doctor_id"`
	SlotDate      string          `json:"slot_date"`
	SlotTime      string          `json:"slot_time"`
	Amount        float64         `json:"amount"`
	Patient       PatientSnapshot `json:"patient"`
	Doctor        DoctorSnapshot  `json:"doctor"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
