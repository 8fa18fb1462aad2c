package service

import (
	"context"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// Correlation is the result of resolving a replied-to message id.
type Correlation struct {
	Ticket *domain.Ticket
	// Message is the transcript entry that was replied to, nil when the
	// reply targeted the ticket's own message on that side.
	Message *domain.TicketMessage
}

// CounterpartID returns the message id on side that the forwarded copy should reply to.
func (c *Correlation) CounterpartID(side domain.Side) *int64 {
	if c.Message != nil {
		if id := c.Message.MessageID(side); id != nil {
			return id
		}
	}
	if side == domain.SideGroup {
		return c.Ticket.GroupMessageID
	}
	return c.Ticket.RequesterMessageID
}

// CorrelationIndex maps a message id seen in one conversation to its ticket.
// Lookups are equality matches scoped to the conversation the reply was raised in.
type CorrelationIndex struct {
	store repository.Store
}

// NewCorrelationIndex builds the index over store.
func NewCorrelationIndex(store repository.Store) *CorrelationIndex {
	return &CorrelationIndex{store: store}
}

// Resolve returns apperrors.ErrUnresolved when neither the ticket fields nor
// any transcript entry of side carry messageID.
func (c *CorrelationIndex) Resolve(ctx context.Context, side domain.Side, conversationID, messageID int64) (*Correlation, error) {
	return resolve(ctx, c.store, side, conversationID, messageID)
}

func resolve(ctx context.Context, store repository.Store, side domain.Side, conversationID, messageID int64) (*Correlation, error) {
	if messageID == 0 {
		return nil, apperrors.ErrUnresolved
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if side == domain.SideGroup {
		ticket, err = store.Tickets().FindByGroupMessage(ctx, conversationID, messageID)
	} else {
		ticket, err = store.Tickets().FindByRequesterMessage(ctx, conversationID, messageID)
	}
	if err == nil {
		return &Correlation{Ticket: ticket}, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	var msg *domain.TicketMessage
	if side == domain.SideGroup {
		msg, err = store.Messages().FindByGroupMessage(ctx, conversationID, messageID)
	} else {
		msg, err = store.Messages().FindByRequesterMessage(ctx, conversationID, messageID)
	}
	if apperrors.IsNotFound(err) {
		return nil, apperrors.ErrUnresolved
	}
	if err != nil {
		return nil, err
	}

	ticket, err = store.Tickets().GetByID(ctx, msg.TicketID)
	if err != nil {
		return nil, err
	}
	return &Correlation{Ticket: ticket, Message: msg}, nil
}
