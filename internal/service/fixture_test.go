package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/platform/platformtest"
	"github.com/spec-kit/ticket-relay/internal/repository/repositorytest"
)

const (
	requesterPID int64 = 501
	responderPID int64 = 601
	groupChatID  int64 = -1001
	otherChatID  int64 = -2002
)

type fixture struct {
	ctx        context.Context
	store      *repositorytest.Store
	messenger  *platformtest.Messenger
	dispatcher events.Dispatcher
	lifecycle  *Lifecycle
	router     *Router
	tickets    *TicketService
	directory  *DirectoryService
	sweeper    *Sweeper

	requester *domain.User
	responder *domain.User
	chat      *domain.Chat
	topic     *domain.Topic

	statusEvents atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:        context.Background(),
		store:      repositorytest.New(),
		messenger:  platformtest.NewMessenger(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	logger := zap.NewNop()

	f.dispatcher.Subscribe(events.EventTicketStatusChanged, func(context.Context, events.Event) error {
		f.statusEvents.Add(1)
		return nil
	})

	f.lifecycle = NewLifecycle(f.store, f.dispatcher, logger)
	f.router = NewRouter(RouterDependencies{
		Store:      f.store,
		Lifecycle:  f.lifecycle,
		Messenger:  f.messenger,
		Dispatcher: f.dispatcher,
		Logger:     logger,
	})
	f.tickets = NewTicketService(TicketDependencies{
		Store:      f.store,
		Lifecycle:  f.lifecycle,
		Messenger:  f.messenger,
		Dispatcher: f.dispatcher,
		Logger:     logger,
	})
	f.directory = NewDirectoryService(f.store, []int64{900}, logger)
	f.sweeper = NewSweeper(f.store, f.lifecycle, f.messenger, nil, logger, SweeperConfig{
		Threshold:         30 * time.Minute,
		NotifyConcurrency: 2,
		NotifyTimeout:     time.Second,
	})

	var err error
	f.chat, err = f.directory.RegisterChat(f.ctx, groupChatID, "IT desk")
	require.NoError(t, err)
	_, err = f.directory.RegisterChat(f.ctx, otherChatID, "Facilities")
	require.NoError(t, err)

	f.topic, err = f.directory.CreateTopic(f.ctx, "IT", nil)
	require.NoError(t, err)
	require.NoError(t, f.directory.BindChat(f.ctx, f.topic.ID, f.chat.ID))

	_, err = f.directory.PreRegister(f.ctx, "@Helpdesk", domain.UserRoleResponder)
	require.NoError(t, err)
	_, err = f.directory.PreRegister(f.ctx, "alice", domain.UserRoleRequester)
	require.NoError(t, err)

	f.responder, err = f.directory.IdentifyParticipant(f.ctx, responderPID, strPtr("helpdesk"), strPtr("Hank"))
	require.NoError(t, err)
	f.requester, err = f.directory.IdentifyParticipant(f.ctx, requesterPID, strPtr("alice"), strPtr("Alice"))
	require.NoError(t, err)
	require.NoError(t, f.directory.AddResponder(f.ctx, f.topic.ID, f.responder.ID))

	return f
}

func strPtr(s string) *string { return &s }

// createTicket runs scenario A and returns the ticket with its announcement id.
func (f *fixture) createTicket(t *testing.T, title string) *domain.Ticket {
	t.Helper()
	result, err := f.tickets.CreateTicket(f.ctx, TicketCreateInput{
		RequesterID: f.requester.ID,
		TopicID:     f.topic.ID,
		Title:       title,
	})
	require.NoError(t, err)
	require.True(t, result.Announced)
	return result.Ticket
}

func (f *fixture) groupReply(replyTo, messageID int64, text string) domain.InboundEvent {
	return domain.InboundEvent{
		Side:             domain.SideGroup,
		ConversationID:   groupChatID,
		SenderID:         responderPID,
		SenderName:       "Hank",
		MessageID:        messageID,
		ReplyToMessageID: replyTo,
		Text:             &text,
	}
}

func (f *fixture) requesterReply(replyTo, messageID int64, text string) domain.InboundEvent {
	return domain.InboundEvent{
		Side:             domain.SideRequester,
		ConversationID:   requesterPID,
		SenderID:         requesterPID,
		SenderName:       "Alice",
		MessageID:        messageID,
		ReplyToMessageID: replyTo,
		Text:             &text,
	}
}

func (f *fixture) ticket(t *testing.T, id int64) domain.Ticket {
	t.Helper()
	ticket, ok := f.store.Ticket(id)
	require.True(t, ok)
	return ticket
}
