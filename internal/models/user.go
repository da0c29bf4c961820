package models

import "time"

// Roles recognised across the API. The rendezvous protocol pairs a patient
// with any user holding the doctor role rather than a single fixed identity.
const (
	RolePatient   = "patient"
	RoleDoctor    = "doctor"
	RoleReception = "reception"
)

// User is an account record shared by patients and staff.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:128;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"size:128" json:"name"`
	Role      string    `gorm:"size:16;index;default:patient" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
