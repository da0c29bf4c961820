package models

import "time"

// ChatMessage is a single append-only entry in a room's message log.
// Ordering within a room is defined by the server-assigned CreatedAt; rows
// are never edited or deleted individually.
type ChatMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RoomID         string    `gorm:"size:255;index;not null" json:"room_id"`
	SenderID       string    `gorm:"size:128;index" json:"sender_id"`
	Content        string    `gorm:"type:text" json:"content"`
	Type           string    `gorm:"size:32;default:text" json:"type"`
	AttachmentURL  string    `gorm:"size:512" json:"attachment_url,omitempty"`
	AttachmentKind string    `gorm:"size:32" json:"attachment_kind,omitempty"`
	AttachmentName string    `gorm:"size:255" json:"attachment_name,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
