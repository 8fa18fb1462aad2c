package domain

import "time"

// TicketMessage is one entry of a ticket transcript. It bridges the message id
// produced in the requester's private conversation with the one produced in
// the group conversation.
type TicketMessage struct {
	ID                 int64
	TicketID           int64
	SenderPlatformID   int64
	Text               *string
	RequesterMessageID *int64
	GroupMessageID     *int64
	DeliveryError      *string
	CreatedAt          time.Time
}

// MessageID returns the id recorded for side, or nil.
func (m *TicketMessage) MessageID(side Side) *int64 {
	if side == SideGroup {
		return m.GroupMessageID
	}
	return m.RequesterMessageID
}

// SetMessageID records id on the field belonging to side.
func (m *TicketMessage) SetMessageID(side Side, id int64) {
	if side == SideGroup {
		m.GroupMessageID = &id
		return
	}
	m.RequesterMessageID = &id
}
