package dto

import (
	"time"

	"github.com/mediline/telecare-api/internal/models"
)

// ChatSendRequest is the payload a participant sends over the room websocket.
// Content may be empty when an attachment is present.
type ChatSendRequest struct {
	RoomID         string `json:"room_id" validate:"omitempty,min=3,max=255"`
	Content        string `json:"content" validate:"omitempty,max=4000"`
	Type           string `json:"type" validate:"omitempty,oneof=text image file system"`
	AttachmentURL  string `json:"attachment_url" validate:"omitempty,url,max=512"`
	AttachmentKind string `json:"attachment_kind" validate:"omitempty,oneof=image file audio video"`
	AttachmentName string `json:"attachment_name" validate:"omitempty,max=255"`
}

// ChatHistoryQuery represents query filters for retrieving room history.
type ChatHistoryQuery struct {
	RoomID string     `query:"room_id" validate:"required,min=3,max=255"`
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ChatMessageResponse is the serialized representation of a room message.
type ChatMessageResponse struct {
	ID             uint      `json:"id"`
	RoomID         string    `json:"room_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	AttachmentKind string    `json:"attachment_kind,omitempty"`
	AttachmentName string    `json:"attachment_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:             message.ID,
		RoomID:         message.RoomID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		Type:           message.Type,
		AttachmentURL:  message.AttachmentURL,
		AttachmentKind: message.AttachmentKind,
		AttachmentName: message.AttachmentName,
		CreatedAt:      message.CreatedAt,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// AttachmentResponse is returned after uploading a chat attachment to the
// blob store; the URL is what gets embedded in the message record.
type AttachmentResponse struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	FileName string `json:"file_name"`
	RoomID   string `json:"room_id"`
}
