package dto

import (
	"time"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Status      domain.TicketStatus `json:"status"`
	RequesterID int64               `json:"requester_id"`
	TopicID     *int64              `json:"topic_id"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides the ticket with its transcript.
type TicketDetailResponse struct {
	TicketSummary
	Description        *string                 `json:"description"`
	ChatID             *int64                  `json:"chat_id"`
	RequesterMessageID *int64                  `json:"requester_message_id"`
	GroupMessageID     *int64                  `json:"group_message_id"`
	Messages           []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse is one transcript entry.
type TicketMessageResponse struct {
	ID                 int64     `json:"id"`
	SenderPlatformID   int64     `json:"sender_platform_id"`
	Text               *string   `json:"text"`
	RequesterMessageID *int64    `json:"requester_message_id"`
	GroupMessageID     *int64    `json:"group_message_id"`
	DeliveryError      *string   `json:"delivery_error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// TransitionResponse reports the effect of a take or close request.
type TransitionResponse struct {
	Ticket  TicketSummary       `json:"ticket"`
	From    domain.TicketStatus `json:"from"`
	To      domain.TicketStatus `json:"to"`
	Changed bool                `json:"changed"`
}

// TicketStatsResponse counts tickets per status.
type TicketStatsResponse struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Closed     int64 `json:"closed"`
}

// NewTicketSummary maps a ticket to its summary.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:          t.ID,
		Title:       t.Title,
		Status:      t.Status,
		RequesterID: t.RequesterID,
		TopicID:     t.TopicID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket and its transcript.
func NewTicketDetail(t *domain.Ticket, messages []domain.TicketMessage) TicketDetailResponse {
	msgs := make([]TicketMessageResponse, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, TicketMessageResponse{
			ID:                 m.ID,
			SenderPlatformID:   m.SenderPlatformID,
			Text:               m.Text,
			RequesterMessageID: m.RequesterMessageID,
			GroupMessageID:     m.GroupMessageID,
			DeliveryError:      m.DeliveryError,
			CreatedAt:          m.CreatedAt,
		})
	}
	return TicketDetailResponse{
		TicketSummary:      NewTicketSummary(t),
		Description:        t.Description,
		ChatID:             t.ChatID,
		RequesterMessageID: t.RequesterMessageID,
		GroupMessageID:     t.GroupMessageID,
		Messages:           msgs,
	}
}
