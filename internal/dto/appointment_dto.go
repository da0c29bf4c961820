package dto

import (
	"time"

	"github.com/mediline/telecare-api/internal/models"
)

// AppointmentBookRequest books a consultation slot.
type AppointmentBookRequest struct {
	PatientEmail string    `json:"patient_email" validate:"required,email,max=128"`
	PatientName  string    `json:"patient_name" validate:"required,min=2,max=128"`
	Contact      string    `json:"contact" validate:"omitempty,max=64"`
	Treatment    string    `json:"treatment" validate:"omitempty,max=128"`
	Complaint    string    `json:"complaint" validate:"omitempty,max=4000"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
}

// AppointmentResponse is the serialized appointment record.
type AppointmentResponse struct {
	ID           uint      `json:"id"`
	PatientEmail string    `json:"patient_email"`
	PatientName  string    `json:"patient_name"`
	Contact      string    `json:"contact,omitempty"`
	Treatment    string    `json:"treatment,omitempty"`
	Complaint    string    `json:"complaint,omitempty"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAppointmentResponse converts an appointment model into a DTO.
func NewAppointmentResponse(appointment models.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           appointment.ID,
		PatientEmail: appointment.PatientEmail,
		PatientName:  appointment.PatientName,
		Contact:      appointment.Contact,
		Treatment:    appointment.Treatment,
		Complaint:    appointment.Complaint,
		ScheduledAt:  appointment.ScheduledAt,
		Status:       appointment.Status,
		CreatedAt:    appointment.CreatedAt,
	}
}

// NewAppointmentResponseSlice converts appointment models into DTOs.
func NewAppointmentResponseSlice(items []models.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewAppointmentResponse(item))
	}
	return out
}

// IntakeGateResponse reports whether new appointment intake is open.
type IntakeGateResponse struct {
	Open      bool      `json:"open"`
	Notice    string    `json:"notice,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IntakeGateUpdateRequest toggles appointment intake.
type IntakeGateUpdateRequest struct {
	Open   bool   `json:"open"`
	Notice string `json:"notice" validate:"omitempty,max=255"`
}
