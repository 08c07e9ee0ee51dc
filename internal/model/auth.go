package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Principal is the authenticated caller handed to the core by the auth middleware.
type Principal struct {
	Subject uuid.UUID `json:"subject"`
	Email   string    `json:"email"`
	Role    Role      `json:"role"`
}
