package models

import "time"

// Appointment statuses.
const (
	AppointmentStatusBooked    = "booked"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusCompleted = "completed"
)

// Appointment is a booked consultation slot.
type Appointment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PatientEmail string    `gorm:"size:128;index;not null" json:"patient_email"`
	PatientName  string    `gorm:"size:128" json:"patient_name"`
	Contact      string    `gorm:"size:64" json:"contact"`
	Treatment    string    `gorm:"size:128" json:"treatment"`
	Complaint    string    `gorm:"type:text" json:"complaint"`
	ScheduledAt  time.Time `gorm:"index" json:"scheduled_at"`
	Status       string    `gorm:"size:16;index;default:booked" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IntakeGate is the single control row toggled by reception that globally
// enables or disables new appointment intake.
type IntakeGate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Open      bool      `gorm:"not null;default:true" json:"open"`
	Notice    string    `gorm:"size:255" json:"notice"`
	UpdatedBy string    `gorm:"size:128" json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
