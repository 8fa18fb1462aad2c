package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/repository"
)

// Trigger names the event that asks for a status change.
type Trigger string

const (
	TriggerResponderReply Trigger = "responder_reply"
	TriggerRequesterReply Trigger = "requester_reply"
	TriggerTake           Trigger = "take"
	TriggerResponderClose Trigger = "responder_close"
	TriggerRequesterClose Trigger = "requester_close"
	TriggerInactivity     Trigger = "inactivity"
)

// IsClose reports whether the trigger ends the ticket.
func (t Trigger) IsClose() bool {
	switch t {
	case TriggerResponderClose, TriggerRequesterClose, TriggerInactivity:
		return true
	}
	return false
}

// NextStatus returns the status trigger moves current to. ok is false when
// current is terminal and the trigger must be ignored.
func NextStatus(current domain.TicketStatus, trigger Trigger) (next domain.TicketStatus, ok bool) {
	if current.Terminal() {
		return current, false
	}
	switch {
	case trigger.IsClose():
		return domain.TicketStatusClosed, true
	case trigger == TriggerResponderReply, trigger == TriggerTake:
		return domain.TicketStatusInProgress, true
	default:
		return current, true
	}
}

// Transition describes one application of a trigger.
type Transition struct {
	TicketID int64
	From     domain.TicketStatus
	To       domain.TicketStatus
	Trigger  Trigger
	Ticket   *domain.Ticket
}

// Changed reports whether the status moved.
func (t *Transition) Changed() bool {
	return t != nil && t.From != t.To
}

// Lifecycle is the only writer of ticket status.
type Lifecycle struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewLifecycle constructs the state machine.
func NewLifecycle(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{store: store, dispatcher: dispatcher, logger: logger}
}

// Apply decides the next status and refreshes updated_at with a single write.
// ticket must be locked by the caller's transaction. Triggers against a closed
// ticket are ignored and logged.
func (l *Lifecycle) Apply(ctx context.Context, tx repository.Store, ticket *domain.Ticket, trigger Trigger) (*Transition, error) {
	next, ok := NextStatus(ticket.Status, trigger)
	if !ok {
		l.logger.Info("transition on closed ticket ignored",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("trigger", string(trigger)))
		return &Transition{TicketID: ticket.ID, From: ticket.Status, To: ticket.Status, Trigger: trigger, Ticket: ticket}, nil
	}

	updated, err := tx.Tickets().Transition(ctx, ticket.ID, next)
	if err != nil {
		return nil, err
	}
	return &Transition{TicketID: ticket.ID, From: ticket.Status, To: updated.Status, Trigger: trigger, Ticket: updated}, nil
}

// Fire applies trigger to the ticket in its own transaction and publishes the change.
func (l *Lifecycle) Fire(ctx context.Context, ticketID int64, trigger Trigger, actor events.Actor) (*Transition, error) {
	var tr *Transition
	err := l.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		tr, err = l.Apply(ctx, tx, ticket, trigger)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Publish(ctx, tr, actor)
	return tr, nil
}

// CloseInactive closes the ticket when it is still open and untouched for
// longer than threshold at the store's clock. A ticket that saw activity
// after it was selected is left alone.
func (l *Lifecycle) CloseInactive(ctx context.Context, ticketID int64, threshold time.Duration) (*Transition, error) {
	var tr *Transition
	err := l.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}
		if ticket.Status.Terminal() || !ticket.UpdatedAt.Before(now.Add(-threshold)) {
			tr = &Transition{TicketID: ticket.ID, From: ticket.Status, To: ticket.Status, Trigger: TriggerInactivity, Ticket: ticket}
			return nil
		}
		tr, err = l.Apply(ctx, tx, ticket, TriggerInactivity)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Publish(ctx, tr, events.Actor{})
	return tr, nil
}

// Publish emits ticket_status_changed for a committed transition. No-op transitions publish nothing.
func (l *Lifecycle) Publish(ctx context.Context, tr *Transition, actor events.Actor) {
	if !tr.Changed() || l.dispatcher == nil {
		return
	}
	event := events.NewEvent(events.EventTicketStatusChanged, tr.TicketID, actor, events.TicketStatusChangedPayload{
		OldStatus: tr.From,
		NewStatus: tr.To,
		Trigger:   string(tr.Trigger),
	})
	if err := l.dispatcher.Publish(ctx, event); err != nil {
		l.logger.Warn("status event handler failed", zap.Int64("ticket_id", tr.TicketID), zap.Error(err))
	}
}
