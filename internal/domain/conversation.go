package domain

// Side names one of the two conversations a ticket spans.
type Side string

const (
	SideRequester Side = "requester"
	SideGroup     Side = "group"
)

// Opposite returns the conversation a message from s is forwarded to.
func (s Side) Opposite() Side {
	if s == SideGroup {
		return SideRequester
	}
	return SideGroup
}

// InboundEvent is a reply observed on either side of a ticket.
type InboundEvent struct {
	Side             Side
	ConversationID   int64
	SenderID         int64
	SenderName       string
	MessageID        int64
	ReplyToMessageID int64
	Text             *string
}

// OutboundMessage is a send request handed to the chat platform.
type OutboundMessage struct {
	ConversationID   int64
	Text             string
	ReplyToMessageID *int64
}
