package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Appointment struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	SlotDate    string          `db:"slot_date" json:"slot_date"`
	SlotTime    string          `db:"slot_time" json:"slot_time"`
	PatientData PatientSnapshot `db:"patient_data" json:"patient_data"`
	DoctorData  DoctorSnapshot  `db:"doctor_data" json:"doctor_data"`
	Amount      float64         `db:"amount" json:"amount"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Cancelled   bool            `db:"cancelled" json:"cancelled"`
	IsCompleted bool            `db:"is_completed" json:"is_completed"`
}

// Active reports whether the appointment still holds its slot.
func (a *Appointment) Active() bool {
	return !a.Cancelled
}

func (a *Appointment) Slot() Slot {
	return Slot{Date: a.SlotDate, Time: a.SlotTime}
}

type BookAppointmentRequest struct {
	PatientID uuid.UUID `json:"-" validate:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" validate:"required"`
	SlotDate  string    `json:"slot_date" validate:"required,slotdate"`
	SlotTime  string    `json:"slot_time" validate:"required,slottime"`
}

type BookAppointmentResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Amount        float64   `json:"amount"`
	SlotDate      string    `json:"slot_date"`
	SlotTime      string    `json:"slot_time"`
}

type CancelAppointmentResponse struct {
	Success bool `json:"success"`
}

type AppointmentFilters struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Cancelled *bool
	Pagination
}

func (s PatientSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PatientSnapshot) Scan(src interface{}) error {
	return scanJSON(src, s)
}

func (s DoctorSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *DoctorSnapshot) Scan(src interface{}) error {
	return scanJSON(src, s)
}
