package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionStatusActive is the only status the registry is queried on; ended
// sessions are deleted rather than flagged.
const SessionStatusActive = "active"

// ActiveSession represents a pending or in-progress chat pairing between a
// patient and a doctor. At most one active row exists per patient email; the
// unique index is what makes concurrent starts converge on a single row.
type ActiveSession struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	PatientEmail string            `gorm:"size:128;uniqueIndex;not null" json:"patient_email"`
	RoomID       string            `gorm:"size:255;index" json:"room_id"`
	PatientName  string            `gorm:"size:128" json:"patient_name"`
	Age          int               `json:"age"`
	Gender       string            `gorm:"size:16" json:"gender"`
	Contact      string            `gorm:"size:64" json:"contact"`
	Complaint    string            `gorm:"type:text" json:"complaint"`
	Urgency      string            `gorm:"size:16;default:routine" json:"urgency"`
	Status       string            `gorm:"size:16;index;default:active" json:"status"`
	Intake       datatypes.JSONMap `gorm:"type:json" json:"intake,omitempty"`
	LastActiveAt time.Time         `json:"last_active_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Urgency tiers accepted on intake.
const (
	UrgencyRoutine  = "routine"
	UrgencyPriority = "priority"
	UrgencyCritical = "critical"
)
