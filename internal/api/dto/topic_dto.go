package dto

import (
	"time"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// CreateTopicRequest payload.
type CreateTopicRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// BindChatRequest binds a topic to a registered chat. A null chat_id unbinds it.
type BindChatRequest struct {
	ChatID *int64 `json:"chat_id"`
}

// TopicResponse represents a topic.
type TopicResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ChatID      *int64    `json:"chat_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatResponse represents a registered group chat.
type ChatResponse struct {
	ID             int64     `json:"id"`
	PlatformChatID int64     `json:"platform_chat_id"`
	Title          string    `json:"title"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewTopicResponse maps a topic.
func NewTopicResponse(t *domain.Topic) TopicResponse {
	return TopicResponse{ID: t.ID, Name: t.Name, Description: t.Description, ChatID: t.ChatID, CreatedAt: t.CreatedAt}
}

// NewChatResponse maps a chat.
func NewChatResponse(c *domain.Chat) ChatResponse {
	return ChatResponse{ID: c.ID, PlatformChatID: c.PlatformChatID, Title: c.Title, Active: c.Active, CreatedAt: c.CreatedAt}
}
