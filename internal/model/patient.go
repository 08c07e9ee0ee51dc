package model

import (
	"github.com/google/uuid"
)

type Patient struct {
	Base
	Name         string  `db:"name" json:"name"`
	Email        string  `db:"email" json:"email"`
	PasswordHash string  `db:"password_hash" json:"-"`
	Image        string  `db:"image" json:"image"`
	Phone        string  `db:"phone" json:"phone"`
	Gender       string  `db:"gender" json:"gender"`
	DOB          string  `db:"dob" json:"dob"`
	Address      Address `db:"address" json:"address"`
}

// PatientSnapshot is the copy of a patient embedded into an appointment at booking time.
type PatientSnapshot struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Image   string    `json:"image"`
	Phone   string    `json:"phone"`
	Gender  string    `json:"gender"`
	DOB     string    `json:"dob"`
	Address Address   `json:"address"`
}

func (p *Patient) Snapshot() PatientSnapshot {
	return PatientSnapshot{
		ID:      p.ID,
		Name:    p.Name,
		Email:   p.Email,
		Image:   p.Image,
		Phone:   p.Phone,
		Gender:  p.Gender,
		DOB:     p.DOB,
		Address: p.Address,
	}
}

type RegisterPatientRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}
