package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

const minTitleLength = 3

// TicketService coordinates ticket workflows outside the reply path.
type TicketService struct {
	store      repository.Store
	lifecycle  *Lifecycle
	messenger  Messenger
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Lifecycle  *Lifecycle
	Messenger  Messenger
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterID int64
	TopicID     int64
	Title       string
	Description *string
}

// TicketCreateResult reports the created ticket and whether the group saw it.
type TicketCreateResult struct {
	Ticket    *domain.Ticket
	Announced bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		lifecycle:  deps.Lifecycle,
		messenger:  deps.Messenger,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket persists an open ticket, announces it in the topic's group chat
// and confirms it to the requester. Announcement failures leave the ticket open.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*TicketCreateResult, error) {
	title := strings.TrimSpace(input.Title)
	if utf8.RuneCountInString(title) < minTitleLength {
		return nil, apperrors.NewValidationError("title too short", map[string]any{"min_length": minTitleLength})
	}
	var description *string
	if input.Description != nil {
		if d := strings.TrimSpace(*input.Description); d != "" {
			description = &d
		}
	}

	var (
		ticket     *domain.Ticket
		topic      *domain.Topic
		chat       *domain.Chat
		requester  *domain.User
		responders []domain.User
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		if requester, err = tx.Users().GetByID(ctx, input.RequesterID); err != nil {
			return err
		}
		if topic, err = tx.Topics().GetByID(ctx, input.TopicID); err != nil {
			return err
		}
		if !topic.Bound() {
			return apperrors.NewValidationError("topic is not bound to a chat", map[string]any{"topic_id": topic.ID})
		}
		if chat, err = tx.Chats().GetByID(ctx, *topic.ChatID); err != nil {
			return err
		}
		if !chat.Active {
			return apperrors.NewValidationError("topic chat is inactive", map[string]any{"topic_id": topic.ID})
		}
		if responders, err = tx.Topics().Responders(ctx, topic.ID); err != nil {
			return err
		}

		ticket = &domain.Ticket{
			Title:       title,
			Description: description,
			Status:      domain.TicketStatusOpen,
			RequesterID: requester.ID,
			TopicID:     &topic.ID,
			ChatID:      &chat.ID,
		}
		return tx.Tickets().Create(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(zap.Int64("ticket_id", ticket.ID))
	result := &TicketCreateResult{Ticket: ticket}

	announcementID, err := s.messenger.Send(ctx, domain.OutboundMessage{
		ConversationID: chat.PlatformChatID,
		Text:           composeAnnouncement(ticket, topic, requester, responders),
	})
	if err != nil {
		logger.Warn("ticket announcement not delivered", zap.Error(apperrors.NewDeliveryFailure(err)))
	} else if err := s.store.Tickets().SetGroupMessageID(ctx, ticket.ID, announcementID); err != nil {
		logger.Error("record announcement id", zap.Error(err))
	} else {
		ticket.GroupMessageID = &announcementID
		result.Announced = true
	}

	if requester.PlatformID != nil {
		confirmationID, err := s.messenger.Send(ctx, domain.OutboundMessage{
			ConversationID: *requester.PlatformID,
			Text:           composeConfirmation(ticket, result.Announced),
		})
		if err != nil {
			logger.Warn("ticket confirmation not delivered", zap.Error(err))
		} else if err := s.store.Tickets().SetRequesterMessageID(ctx, ticket.ID, confirmationID); err != nil {
			logger.Error("record confirmation id", zap.Error(err))
		} else {
			ticket.RequesterMessageID = &confirmationID
		}
	}

	s.publish(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, events.Actor{Side: domain.SideRequester, PlatformID: requester.PlatformID},
		events.TicketCreatedPayload{TopicID: ticket.TopicID, Title: ticket.Title, Announced: result.Announced}))
	return result, nil
}

// TakeInProgress marks the ticket as being worked on and tells the requester.
func (s *TicketService) TakeInProgress(ctx context.Context, ticketID int64, actor events.Actor) (*Transition, error) {
	tr, err := s.lifecycle.Fire(ctx, ticketID, TriggerTake, actor)
	if err != nil {
		return nil, err
	}
	if tr.Changed() {
		s.notifyRequester(ctx, tr.Ticket, takenNotice(tr.Ticket))
	}
	return tr, nil
}

// Close ends the ticket on behalf of actor. A requester may only close their
// own tickets. The other side is notified when the status actually changed.
func (s *TicketService) Close(ctx context.Context, ticketID int64, actor events.Actor) (*Transition, error) {
	trigger := TriggerResponderClose
	if actor.Side == domain.SideRequester {
		trigger = TriggerRequesterClose
		if err := s.ensureOwner(ctx, ticketID, actor); err != nil {
			return nil, err
		}
	}

	tr, err := s.lifecycle.Fire(ctx, ticketID, trigger, actor)
	if err != nil {
		return nil, err
	}
	if !tr.Changed() {
		return tr, nil
	}
	if trigger == TriggerRequesterClose {
		s.notifyGroup(ctx, tr.Ticket, closedByRequesterNotice(tr.Ticket))
	} else {
		s.notifyRequester(ctx, tr.Ticket, closedByResponderNotice(tr.Ticket))
	}
	return tr, nil
}

func (s *TicketService) ensureOwner(ctx context.Context, ticketID int64, actor events.Actor) error {
	if actor.PlatformID == nil {
		return apperrors.NewForbidden("unknown requester")
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	owner, err := s.store.Users().GetByID(ctx, ticket.RequesterID)
	if err != nil {
		return err
	}
	if owner.PlatformID == nil || *owner.PlatformID != *actor.PlatformID {
		return apperrors.NewForbidden("ticket belongs to another requester")
	}
	return nil
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.store.Tickets().GetByID(ctx, ticketID)
}

// Transcript returns the ticket's messages in creation order.
func (s *TicketService) Transcript(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	if _, err := s.store.Tickets().GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.store.Messages().ListByTicket(ctx, ticketID)
}

// List returns tickets matching filter, most recently active first.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	return s.store.Tickets().List(ctx, filter)
}

// TicketView is a ticket with its requester and transcript.
type TicketView struct {
	Ticket    *domain.Ticket
	Requester *domain.User
	Messages  []domain.TicketMessage
}

// View returns the ticket for viewer: its requester, or a responder of its topic.
// Anyone else gets Forbidden.
func (s *TicketService) View(ctx context.Context, ticketID int64, viewer *domain.User) (*TicketView, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	allowed := ticket.RequesterID == viewer.ID
	if !allowed && viewer.Role == domain.UserRoleResponder && ticket.TopicID != nil {
		responders, err := s.store.Topics().Responders(ctx, *ticket.TopicID)
		if err != nil {
			return nil, err
		}
		for _, r := range responders {
			if r.ID == viewer.ID {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return nil, apperrors.NewForbidden("ticket belongs to another requester")
	}

	requester, err := s.store.Users().GetByID(ctx, ticket.RequesterID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.Messages().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return &TicketView{Ticket: ticket, Requester: requester, Messages: messages}, nil
}

// ListByStatus lists tickets in any of statuses.
func (s *TicketService) ListByStatus(ctx context.Context, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	return s.List(ctx, repository.TicketFilter{Statuses: statuses, Limit: limit, Offset: offset})
}

// ListByRequester lists a requester's tickets.
func (s *TicketService) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]domain.Ticket, error) {
	return s.store.Tickets().List(ctx, repository.TicketFilter{RequesterID: &requesterID, Limit: limit, Offset: offset})
}

// ListByResponder lists tickets of the topics a responder is assigned to.
func (s *TicketService) ListByResponder(ctx context.Context, responderID int64, limit, offset int) ([]domain.Ticket, error) {
	return s.store.Tickets().List(ctx, repository.TicketFilter{ResponderUserID: &responderID, Limit: limit, Offset: offset})
}

// Stats counts tickets by status.
func (s *TicketService) Stats(ctx context.Context) (*domain.TicketStats, error) {
	return s.store.Tickets().Stats(ctx)
}

func (s *TicketService) notifyRequester(ctx context.Context, ticket *domain.Ticket, text string) {
	requester, err := s.store.Users().GetByID(ctx, ticket.RequesterID)
	if err != nil || requester.PlatformID == nil {
		s.logger.Warn("requester unreachable", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	s.send(ctx, ticket, domain.OutboundMessage{
		ConversationID:   *requester.PlatformID,
		Text:             text,
		ReplyToMessageID: ticket.RequesterMessageID,
	})
}

func (s *TicketService) notifyGroup(ctx context.Context, ticket *domain.Ticket, text string) {
	if ticket.ChatID == nil {
		return
	}
	chat, err := s.store.Chats().GetByID(ctx, *ticket.ChatID)
	if err != nil {
		s.logger.Warn("group chat unreachable", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	s.send(ctx, ticket, domain.OutboundMessage{
		ConversationID:   chat.PlatformChatID,
		Text:             text,
		ReplyToMessageID: ticket.GroupMessageID,
	})
}

func (s *TicketService) send(ctx context.Context, ticket *domain.Ticket, msg domain.OutboundMessage) {
	if _, err := s.messenger.Send(ctx, msg); err != nil {
		s.logger.Warn("ticket notice not delivered",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("conversation_id", msg.ConversationID),
			zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
