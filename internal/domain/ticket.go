package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 int64
	Title              string
	Description        *string
	Status             TicketStatus
	RequesterID        int64
	TopicID            *int64
	ChatID             *int64
	RequesterMessageID *int64
	GroupMessageID     *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TicketStats counts tickets per status.
type TicketStats struct {
	Total      int64
	Open       int64
	InProgress int64
	Closed     int64
}
