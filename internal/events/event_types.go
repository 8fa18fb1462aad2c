package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketMessageRelayed EventType = "ticket_message_relayed"
	EventTicketDeliveryFailed EventType = "ticket_delivery_failed"
)

// Actor identifies who caused an event. PlatformID is nil for the sweeper.
type Actor struct {
	Side       domain.Side `json:"side,omitempty"`
	PlatformID *int64      `json:"platform_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a fresh id and timestamp.
func NewEvent(eventType EventType, ticketID int64, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TopicID   *int64 `json:"topic_id,omitempty"`
	Title     string `json:"title"`
	Announced bool   `json:"announced"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Trigger   string              `json:"trigger"`
}

// TicketMessageRelayedPayload payload.
type TicketMessageRelayedPayload struct {
	MessageID   int64       `json:"message_id"`
	From        domain.Side `json:"from"`
	BodyPreview string      `json:"body_preview"`
}

// TicketDeliveryFailedPayload payload.
type TicketDeliveryFailedPayload struct {
	MessageID *int64      `json:"message_id,omitempty"`
	Target    domain.Side `json:"target"`
	Reason    string      `json:"reason"`
}
