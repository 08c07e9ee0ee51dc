package model

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	Base
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Image          string     `db:"image" json:"image"`
	Specialization string     `db:"specialization" json:"specialization"`
	Degree         string     `db:"degree" json:"degree"`
	Experience     string     `db:"experience" json:"experience"`
	About          string     `db:"about" json:"about"`
	Available      bool       `db:"available" json:"available"`
	Fee            float64    `db:"fee" json:"fee"`
	Address        Address    `db:"address" json:"address"`
	SlotsBooked    SlotLedger `db:"slots_booked" json:"slots_booked,omitempty"`
}

// DoctorSnapshot is the copy of a doctor embedded into an appointment at booking time.
// It carries neither the slot ledger nor credentials.
type DoctorSnapshot struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Image          string    `json:"image"`
	Specialization string    `json:"specialization"`
	Degree         string    `json:"degree"`
	Experience     string    `json:"experience"`
	About          string    `json:"about"`
	Fee            float64   `json:"fee"`
	Address        Address   `json:"address"`
}

// Snapshot returns a value copy of the doctor without the ledger.
func (d *Doctor) Snapshot() DoctorSnapshot {
	return DoctorSnapshot{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Image:          d.Image,
		Specialization: d.Specialization,
		Degree:         d.Degree,
		Experience:     d.Experience,
		About:          d.About,
		Fee:            d.Fee,
		Address:        d.Address,
	}
}

// Public strips the ledger for list views.
func (d *Doctor) Public() *Doctor {
	out := *d
	out.PasswordHash = ""
	out.SlotsBooked = nil
	return &out
}

type CreateDoctorRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,strongpassword"`
	Image          string  `json:"image" validate:"omitempty,url"`
	Specialization string  `json:"specialization" validate:"required"`
	Degree         string  `json:"degree" validate:"required"`
	Experience     string  `json:"experience" validate:"required"`
	About          string  `json:"about" validate:"required,max=2000"`
	Available      *bool   `json:"available" validate:"required"`
	Fee            float64 `json:"fee" validate:"required,gt=0"`
	Address        Address `json:"address"`
}

type AvailabilityResponse struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}
