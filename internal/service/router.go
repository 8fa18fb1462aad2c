package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/observability"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// Outcome summarizes what the router did with an inbound reply.
type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeClosed         Outcome = "closed"
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

// RouteResult reports the effect of one inbound reply.
type RouteResult struct {
	Outcome    Outcome
	Ticket     *domain.Ticket
	Message    *domain.TicketMessage
	Transition *Transition
}

// RouterConfig toggles optional router behavior.
type RouterConfig struct {
	DeliveryAck bool
}

// Router forwards replies between a requester's private conversation and the ticket's group chat.
type Router struct {
	store      repository.Store
	lifecycle  *Lifecycle
	messenger  Messenger
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        RouterConfig
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Store      repository.Store
	Lifecycle  *Lifecycle
	Messenger  Messenger
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     RouterConfig
}

// NewRouter constructs the router.
func NewRouter(deps RouterDependencies) *Router {
	return &Router{
		store:      deps.Store,
		lifecycle:  deps.Lifecycle,
		messenger:  deps.Messenger,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        deps.Config,
	}
}

// delivery is the outbound send prepared inside the routing transaction.
type delivery struct {
	target  *domain.OutboundMessage
	failure string
}

// Route resolves ev, applies the lifecycle and persists the transcript entry
// atomically, then forwards the message to the other side. Unrelated replies
// are ignored. Replies to closed tickets only produce a notice to the sender.
// Store failures are reported to the sender and returned; nothing is retried.
func (r *Router) Route(ctx context.Context, ev domain.InboundEvent) (*RouteResult, error) {
	logger := r.logger.With(
		zap.String("side", string(ev.Side)),
		zap.Int64("conversation_id", ev.ConversationID),
		zap.Int64("message_id", ev.MessageID),
	)

	var (
		result = &RouteResult{}
		out    delivery
	)
	err := r.store.WithinTx(ctx, func(tx repository.Store) error {
		corr, err := resolve(ctx, tx, ev.Side, ev.ConversationID, ev.ReplyToMessageID)
		if err != nil {
			return err
		}
		ticket, err := tx.Tickets().GetForUpdate(ctx, corr.Ticket.ID)
		if err != nil {
			return err
		}
		result.Ticket = ticket
		if ticket.Status.Terminal() {
			return apperrors.ErrTicketClosed
		}

		trigger := TriggerRequesterReply
		if ev.Side == domain.SideGroup {
			trigger = TriggerResponderReply
		}
		tr, err := r.lifecycle.Apply(ctx, tx, ticket, trigger)
		if err != nil {
			return err
		}
		result.Transition = tr
		result.Ticket = tr.Ticket

		msg := &domain.TicketMessage{
			TicketID:         ticket.ID,
			SenderPlatformID: ev.SenderID,
			Text:             ev.Text,
		}
		msg.SetMessageID(ev.Side, ev.MessageID)
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}
		result.Message = msg

		out, err = r.prepare(ctx, tx, ev, tr.Ticket, corr)
		return err
	})

	switch {
	case apperrors.IsUnresolved(err):
		logger.Debug("reply not correlated to a ticket", zap.Int64("reply_to", ev.ReplyToMessageID))
		r.metrics.RecordRouted(string(ev.Side), string(OutcomeIgnored))
		return &RouteResult{Outcome: OutcomeIgnored}, nil
	case apperrors.IsTicketClosed(err):
		logger.Info("reply to closed ticket not delivered", zap.Int64("ticket_id", result.Ticket.ID))
		r.notifySender(ctx, ev, closedNotice(result.Ticket.ID))
		r.metrics.RecordRouted(string(ev.Side), string(OutcomeClosed))
		return &RouteResult{Outcome: OutcomeClosed, Ticket: result.Ticket}, nil
	case err != nil:
		logger.Error("route reply", zap.Error(err))
		r.notifySender(ctx, ev, processingFailedNotice)
		return nil, err
	}

	logger = logger.With(zap.Int64("ticket_id", result.Ticket.ID), zap.Int64("ticket_message_id", result.Message.ID))
	r.lifecycle.Publish(ctx, result.Transition, actorOf(ev))
	r.publish(ctx, events.EventTicketMessageRelayed, ev, result.Ticket.ID, events.TicketMessageRelayedPayload{
		MessageID:   result.Message.ID,
		From:        ev.Side,
		BodyPreview: preview(ev.Text),
	})

	var (
		outboundID int64
		sendErr    error
	)
	if out.target == nil {
		sendErr = noDestination(out.failure)
	} else {
		outboundID, sendErr = r.messenger.Send(ctx, *out.target)
	}
	if sendErr != nil {
		r.recordFailure(ctx, logger, ev, result, sendErr)
		result.Outcome = OutcomeDeliveryFailed
		r.metrics.RecordRouted(string(ev.Side), string(OutcomeDeliveryFailed))
		return result, nil
	}

	if err := r.store.Messages().SetOutboundID(ctx, result.Message.ID, ev.Side.Opposite(), outboundID); err != nil {
		logger.Error("record outbound message id", zap.Int64("outbound_id", outboundID), zap.Error(err))
		return result, fmt.Errorf("record outbound id: %w", err)
	}
	result.Message.SetMessageID(ev.Side.Opposite(), outboundID)
	result.Outcome = OutcomeDelivered
	r.metrics.RecordRouted(string(ev.Side), string(OutcomeDelivered))

	if r.cfg.DeliveryAck {
		r.notifySender(ctx, ev, deliveredNotice(result.Ticket.ID))
	}
	return result, nil
}

// prepare resolves the destination on the opposite side. A missing
// destination is a delivery failure, not a routing error.
func (r *Router) prepare(ctx context.Context, tx repository.Store, ev domain.InboundEvent, ticket *domain.Ticket, corr *Correlation) (delivery, error) {
	sender := ev.SenderName
	if user, err := tx.Users().GetByPlatformID(ctx, ev.SenderID); err == nil {
		sender = user.Identity()
	} else if !apperrors.IsNotFound(err) {
		return delivery{}, err
	}
	text := composeForward(ev.Side, ticket, sender, ev.Text)
	target := ev.Side.Opposite()

	if target == domain.SideRequester {
		requester, err := tx.Users().GetByID(ctx, ticket.RequesterID)
		if err != nil {
			return delivery{}, err
		}
		if requester.PlatformID == nil {
			return delivery{failure: "requester has no platform account"}, nil
		}
		return delivery{target: &domain.OutboundMessage{
			ConversationID:   *requester.PlatformID,
			Text:             text,
			ReplyToMessageID: corr.CounterpartID(domain.SideRequester),
		}}, nil
	}

	if ticket.ChatID == nil {
		return delivery{failure: "ticket has no group chat"}, nil
	}
	chat, err := tx.Chats().GetByID(ctx, *ticket.ChatID)
	if err != nil {
		return delivery{}, err
	}
	if !chat.Active {
		return delivery{failure: "group chat is inactive"}, nil
	}
	return delivery{target: &domain.OutboundMessage{
		ConversationID:   chat.PlatformChatID,
		Text:             text,
		ReplyToMessageID: corr.CounterpartID(domain.SideGroup),
	}}, nil
}

func (r *Router) recordFailure(ctx context.Context, logger *zap.Logger, ev domain.InboundEvent, result *RouteResult, sendErr error) {
	logger.Warn("forward not delivered", deliveryFields(sendErr)...)
	r.metrics.RecordDeliveryFailure(string(ev.Side.Opposite()), DeliveryReason(sendErr))

	if err := r.store.Messages().MarkDeliveryFailed(ctx, result.Message.ID, sendErr.Error()); err != nil {
		logger.Error("record delivery failure", zap.Error(err))
	} else {
		reason := sendErr.Error()
		result.Message.DeliveryError = &reason
	}

	id := result.Message.ID
	r.publish(ctx, events.EventTicketDeliveryFailed, ev, result.Ticket.ID, events.TicketDeliveryFailedPayload{
		MessageID: &id,
		Target:    ev.Side.Opposite(),
		Reason:    sendErr.Error(),
	})
	r.notifySender(ctx, ev, deliveryFailedNotice(result.Ticket.ID))
}

// notifySender replies to the inbound message on its own side. Failures are logged only.
func (r *Router) notifySender(ctx context.Context, ev domain.InboundEvent, text string) {
	replyTo := ev.MessageID
	_, err := r.messenger.Send(ctx, domain.OutboundMessage{
		ConversationID:   ev.ConversationID,
		Text:             text,
		ReplyToMessageID: &replyTo,
	})
	if err != nil {
		r.logger.Warn("notice not delivered",
			zap.String("side", string(ev.Side)),
			zap.Int64("conversation_id", ev.ConversationID),
			zap.Error(err))
	}
}

func (r *Router) publish(ctx context.Context, eventType events.EventType, ev domain.InboundEvent, ticketID int64, payload interface{}) {
	if r.dispatcher == nil {
		return
	}
	if err := r.dispatcher.Publish(ctx, events.NewEvent(eventType, ticketID, actorOf(ev), payload)); err != nil {
		r.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func actorOf(ev domain.InboundEvent) events.Actor {
	sender := ev.SenderID
	return events.Actor{Side: ev.Side, PlatformID: &sender}
}

func preview(text *string) string {
	if text == nil {
		return nonTextPlaceholder
	}
	const limit = 64
	if utf8.RuneCountInString(*text) <= limit {
		return *text
	}
	return string([]rune(*text)[:limit]) + "…"
}
