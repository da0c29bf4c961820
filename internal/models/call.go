package models

import "time"

// CallStatus is the lifecycle state of an active call document. Values are
// part of the wire contract and must stay stable.
type CallStatus string

const (
	CallStatusWaiting   CallStatus = "waiting"
	CallStatusConnected CallStatus = "connected"
	CallStatusEnded     CallStatus = "ended"
	CallStatusDeclined  CallStatus = "declined"
	CallStatusMissed    CallStatus = "missed"
	CallStatusCancelled CallStatus = "cancelled"
)

// Call media kinds.
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// Terminal reports whether the status ends the call lifecycle.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusEnded, CallStatusDeclined, CallStatusMissed, CallStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Terminal states accept no further transitions.
func (s CallStatus) CanTransition(next CallStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case CallStatusWaiting:
		return next == CallStatusConnected || next.Terminal()
	case CallStatusConnected:
		return next == CallStatusEnded || next == CallStatusCancelled
	}
	return false
}

// ActiveCall represents a pending or in-progress audio/video call. The
// ChannelID is the join key handed to the external video transport and must
// be unique per call.
type ActiveCall struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ChannelID    string     `gorm:"size:64;uniqueIndex;not null" json:"channel_id"`
	PatientEmail string     `gorm:"size:128;index;not null" json:"patient_email"`
	PatientName  string     `gorm:"size:128" json:"patient_name"`
	PatientUID   string     `gorm:"size:64" json:"patient_uid"`
	CallType     string     `gorm:"size:16;default:video" json:"call_type"`
	Status       CallStatus `gorm:"size:16;index;default:waiting" json:"status"`
	Urgency      string     `gorm:"size:16;default:routine" json:"urgency"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CallLog is the append-only record written once per call attempt at
// teardown. The unique index on ChannelID is what suppresses duplicate log
// writes when both sides race to record the same hangup.
type CallLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ChannelID       string     `gorm:"size:64;uniqueIndex;not null" json:"channel_id"`
	PatientEmail    string     `gorm:"size:128;index" json:"patient_email"`
	PatientName     string     `gorm:"size:128" json:"patient_name"`
	CallType        string     `gorm:"size:16" json:"call_type"`
	Status          CallStatus `gorm:"size:16" json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         time.Time  `json:"ended_at"`
	CreatedAt       time.Time  `json:"created_at"`
}
