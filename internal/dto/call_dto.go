package dto

import (
	"time"

	"github.com/mediline/telecare-api/internal/models"
)

// CallCreateRequest starts a new audio or video call in the waiting state.
type CallCreateRequest struct {
	PatientEmail string `json:"patient_email" validate:"required,email,max=128"`
	PatientName  string `json:"patient_name" validate:"required,min=2,max=128"`
	PatientUID   string `json:"patient_uid" validate:"omitempty,max=64"`
	CallType     string `json:"call_type" validate:"required,oneof=audio video"`
	Urgency      string `json:"urgency" validate:"omitempty,oneof=routine priority critical"`
}

// CallResponse is the serialized call registry entry.
type CallResponse struct {
	ID           uint              `json:"id"`
	ChannelID    string            `json:"channel_id"`
	PatientEmail string            `json:"patient_email"`
	PatientName  string            `json:"patient_name"`
	PatientUID   string            `json:"patient_uid,omitempty"`
	CallType     string            `json:"call_type"`
	Status       models.CallStatus `json:"status"`
	Urgency      string            `json:"urgency"`
	ConnectedAt  *time.Time        `json:"connected_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewCallResponse converts a call model into a DTO.
func NewCallResponse(call models.ActiveCall) CallResponse {
	return CallResponse{
		ID:           call.ID,
		ChannelID:    call.ChannelID,
		PatientEmail: call.PatientEmail,
		PatientName:  call.PatientName,
		PatientUID:   call.PatientUID,
		CallType:     call.CallType,
		Status:       call.Status,
		Urgency:      call.Urgency,
		ConnectedAt:  call.ConnectedAt,
		CreatedAt:    call.CreatedAt,
	}
}

// NewCallResponseSlice converts a slice of call models into DTOs.
func NewCallResponseSlice(calls []models.ActiveCall) []CallResponse {
	out := make([]CallResponse, 0, len(calls))
	for _, call := range calls {
		out = append(out, NewCallResponse(call))
	}
	return out
}

// CallEvent is pushed to watchers of a specific call document. Kind is one of
// call_created, call_connected, call_terminated, call_removed. A terminal
// kind instructs the peer to release local media and leave the channel.
type CallEvent struct {
	Kind      string            `json:"kind"`
	ChannelID string            `json:"channel_id"`
	Status    models.CallStatus `json:"status,omitempty"`
	Call      *CallResponse     `json:"call,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

// CallLogResponse is the serialized append-only log entry.
type CallLogResponse struct {
	ID              uint              `json:"id"`
	ChannelID       string            `json:"channel_id"`
	PatientEmail    string            `json:"patient_email"`
	PatientName     string            `json:"patient_name"`
	CallType        string            `json:"call_type"`
	Status          models.CallStatus `json:"status"`
	DurationSeconds int               `json:"duration_seconds"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         time.Time         `json:"ended_at"`
}

// NewCallLogResponse converts a log model into a DTO.
func NewCallLogResponse(log models.CallLog) CallLogResponse {
	return CallLogResponse{
		ID:              log.ID,
		ChannelID:       log.ChannelID,
		PatientEmail:    log.PatientEmail,
		PatientName:     log.PatientName,
		CallType:        log.CallType,
		Status:          log.Status,
		DurationSeconds: log.DurationSeconds,
		StartedAt:       log.StartedAt,
		EndedAt:         log.EndedAt,
	}
}

// NewCallLogResponseSlice converts log models into DTOs.
func NewCallLogResponseSlice(logs []models.CallLog) []CallLogResponse {
	out := make([]CallLogResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, NewCallLogResponse(log))
	}
	return out
}
