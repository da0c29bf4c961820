package dto

import (
	"time"

	"github.com/mediline/telecare-api/internal/models"
)

// SessionStartRequest is the intake payload a patient submits to open (or
// refresh) a chat session with the on-duty doctor.
type SessionStartRequest struct {
	PatientEmail string            `json:"patient_email" validate:"required,email,max=128"`
	PatientName  string            `json:"patient_name" validate:"required,min=2,max=128"`
	Age          int               `json:"age" validate:"omitempty,min=0,max=150"`
	Gender       string            `json:"gender" validate:"omitempty,oneof=male female other"`
	Contact      string            `json:"contact" validate:"omitempty,max=64"`
	Complaint    string            `json:"complaint" validate:"required,min=3,max=4000"`
	Urgency      string            `json:"urgency" validate:"omitempty,oneof=routine priority critical"`
	Intake       map[string]string `json:"intake,omitempty" validate:"omitempty,max=32"`
}

// SessionResponse is the serialized registry entry returned to both sides.
type SessionResponse struct {
	ID           uint      `json:"id"`
	PatientEmail string    `json:"patient_email"`
	RoomID       string    `json:"room_id"`
	PatientName  string    `json:"patient_name"`
	Age          int       `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Contact      string    `json:"contact,omitempty"`
	Complaint    string    `json:"complaint"`
	Urgency      string    `json:"urgency"`
	Status       string    `json:"status"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSessionResponse converts a registry model into a DTO.
func NewSessionResponse(session models.ActiveSession) SessionResponse {
	return SessionResponse{
		ID:           session.ID,
		PatientEmail: session.PatientEmail,
		RoomID:       session.RoomID,
		PatientName:  session.PatientName,
		Age:          session.Age,
		Gender:       session.Gender,
		Contact:      session.Contact,
		Complaint:    session.Complaint,
		Urgency:      session.Urgency,
		Status:       session.Status,
		LastActiveAt: session.LastActiveAt,
		ExpiresAt:    session.ExpiresAt,
		CreatedAt:    session.CreatedAt,
	}
}

// NewSessionResponseSlice converts a slice of registry models into DTOs.
func NewSessionResponseSlice(sessions []models.ActiveSession) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, NewSessionResponse(session))
	}
	return out
}

// SessionEvent is pushed to registry watchers whenever a session document
// changes. Kind is one of session_started, session_updated, session_ended,
// session_expired.
type SessionEvent struct {
	Kind    string          `json:"kind"`
	Session SessionResponse `json:"session"`
	SentAt  time.Time       `json:"sent_at"`
}
