package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
)

func TestRouteScenarioCreateReplyAndAnswer(t *testing.T) {
	f := newFixture(t)

	// A: creation announces the ticket in the bound chat.
	ticket := f.createTicket(t, "printer broken")
	announcement, ok := f.messenger.Last(groupChatID)
	require.True(t, ok)
	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	require.NotNil(t, stored.GroupMessageID)
	assert.Equal(t, announcement.ID, *stored.GroupMessageID)
	assert.Contains(t, announcement.Text, "printer broken")
	assert.Contains(t, announcement.Text, "@helpdesk")

	// B: a responder replies to the announcement.
	res, err := f.router.Route(f.ctx, f.groupReply(announcement.ID, 11, "looking into it"))
	require.NoError(t, err)
	require.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, domain.TicketStatusInProgress, f.ticket(t, ticket.ID).Status)
	assert.Equal(t, 1, f.store.MessageCount(ticket.ID))

	forwarded, ok := f.messenger.Last(requesterPID)
	require.True(t, ok)
	assert.Contains(t, forwarded.Text, "looking into it")
	assert.Contains(t, forwarded.Text, "Hank (@helpdesk)")

	transcript, err := f.tickets.Transcript(f.ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	require.NotNil(t, transcript[0].GroupMessageID)
	require.NotNil(t, transcript[0].RequesterMessageID)
	assert.EqualValues(t, 11, *transcript[0].GroupMessageID)
	assert.Equal(t, forwarded.ID, *transcript[0].RequesterMessageID)

	// C: the requester answers the forwarded copy.
	res, err = f.router.Route(f.ctx, f.requesterReply(forwarded.ID, 21, "thanks, it's on floor 3"))
	require.NoError(t, err)
	require.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, domain.TicketStatusInProgress, f.ticket(t, ticket.ID).Status)

	toGroup, ok := f.messenger.Last(groupChatID)
	require.True(t, ok)
	assert.Contains(t, toGroup.Text, "floor 3")
	require.NotNil(t, toGroup.ReplyToMessageID)
	assert.EqualValues(t, 11, *toGroup.ReplyToMessageID, "replies to the closest prior group message")

	transcript, err = f.tickets.Transcript(f.ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.EqualValues(t, 21, *transcript[1].RequesterMessageID)
	assert.Equal(t, toGroup.ID, *transcript[1].GroupMessageID)

	// Later group replies to the relayed requester message still correlate.
	res, err = f.router.Route(f.ctx, f.groupReply(toGroup.ID, 12, "fixed"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, ticket.ID, res.Ticket.ID)
}

func TestRouteRequesterReplyToConfirmationTargetsAnnouncement(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "no wifi")
	stored := f.ticket(t, ticket.ID)
	require.NotNil(t, stored.RequesterMessageID)

	res, err := f.router.Route(f.ctx, f.requesterReply(*stored.RequesterMessageID, 31, "also no ethernet"))
	require.NoError(t, err)
	require.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status, "requester replies never change status")

	toGroup, _ := f.messenger.Last(groupChatID)
	require.NotNil(t, toGroup.ReplyToMessageID)
	assert.Equal(t, *stored.GroupMessageID, *toGroup.ReplyToMessageID)
}

func TestRouteToClosedTicketOnlyNotifiesSender(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "keyboard")
	announcementID := *f.ticket(t, ticket.ID).GroupMessageID

	res, err := f.router.Route(f.ctx, f.groupReply(announcementID, 11, "on it"))
	require.NoError(t, err)
	forwardedID := *res.Message.RequesterMessageID

	// D: a responder closes, then the requester writes again.
	_, err = f.tickets.Close(f.ctx, ticket.ID, events.Actor{Side: domain.SideGroup})
	require.NoError(t, err)
	closedAt := f.ticket(t, ticket.ID).UpdatedAt
	groupSends := len(f.messenger.SentTo(groupChatID))
	f.store.Clock.Advance(time.Minute)

	res, err = f.router.Route(f.ctx, f.requesterReply(forwardedID, 41, "still broken"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeClosed, res.Outcome)
	assert.Equal(t, 1, f.store.MessageCount(ticket.ID))
	assert.Len(t, f.messenger.SentTo(groupChatID), groupSends, "nothing forwarded")

	got := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusClosed, got.Status)
	assert.Equal(t, closedAt, got.UpdatedAt)

	notice, _ := f.messenger.Last(requesterPID)
	assert.Contains(t, notice.Text, "already closed")
	require.NotNil(t, notice.ReplyToMessageID)
	assert.EqualValues(t, 41, *notice.ReplyToMessageID)
}

func TestRouteIgnoresUncorrelatedReplies(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "monitor")
	announcementID := *f.ticket(t, ticket.ID).GroupMessageID
	f.messenger.Reset()

	for _, ev := range []domain.InboundEvent{
		f.groupReply(9999, 11, "unrelated chatter"),
		f.groupReply(0, 12, "not a reply at all"),
		// same id in a different group conversation
		func() domain.InboundEvent {
			ev := f.groupReply(announcementID, 13, "wrong room")
			ev.ConversationID = otherChatID
			return ev
		}(),
		// requester-side lookups only consider the sender's own tickets
		func() domain.InboundEvent {
			ev := f.requesterReply(*f.ticket(t, ticket.ID).RequesterMessageID, 14, "hi")
			ev.ConversationID, ev.SenderID = 777, 777
			return ev
		}(),
	} {
		res, err := f.router.Route(f.ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
	}

	assert.Empty(t, f.messenger.Attempts())
	assert.Equal(t, 0, f.store.MessageCount(ticket.ID))
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}

func TestRouteDeliveryFailureKeepsTranscript(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "scanner")
	announcementID := *f.ticket(t, ticket.ID).GroupMessageID
	f.messenger.FailConversation(requesterPID, errors.New("Forbidden: bot was blocked by the user"))

	res, err := f.router.Route(f.ctx, f.groupReply(announcementID, 11, "can you restart it?"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeliveryFailed, res.Outcome)

	transcript, err := f.tickets.Transcript(f.ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.EqualValues(t, 11, *transcript[0].GroupMessageID)
	assert.Nil(t, transcript[0].RequesterMessageID)
	require.NotNil(t, transcript[0].DeliveryError)
	assert.Contains(t, *transcript[0].DeliveryError, "blocked")
	assert.Equal(t, domain.TicketStatusInProgress, f.ticket(t, ticket.ID).Status)

	notice, _ := f.messenger.Last(groupChatID)
	assert.Contains(t, notice.Text, "could not be delivered")
	assert.EqualValues(t, 11, *notice.ReplyToMessageID)
}

func TestRouteAcknowledgesDeliveryWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.router = NewRouter(RouterDependencies{
		Store:     f.store,
		Lifecycle: f.lifecycle,
		Messenger: f.messenger,
		Logger:    zap.NewNop(),
		Config:    RouterConfig{DeliveryAck: true},
	})
	ticket := f.createTicket(t, "chair")
	announcementID := *f.ticket(t, ticket.ID).GroupMessageID

	_, err := f.router.Route(f.ctx, f.groupReply(announcementID, 11, "ordering a new one"))
	require.NoError(t, err)

	ack, _ := f.messenger.Last(groupChatID)
	assert.Contains(t, ack.Text, "Delivered")
	assert.EqualValues(t, 11, *ack.ReplyToMessageID)
}

func TestRouteNonTextMessageUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "photo of error")
	announcementID := *f.ticket(t, ticket.ID).GroupMessageID

	ev := f.groupReply(announcementID, 11, "")
	ev.Text = nil
	res, err := f.router.Route(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Nil(t, res.Message.Text)

	forwarded, _ := f.messenger.Last(requesterPID)
	assert.Contains(t, forwarded.Text, nonTextPlaceholder)
}

func TestRouteEscapesMarkup(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "html")
	announcementID := *f.ticket(t, ticket.ID).GroupMessageID

	_, err := f.router.Route(f.ctx, f.groupReply(announcementID, 11, "<b>bold</b> & co"))
	require.NoError(t, err)
	forwarded, _ := f.messenger.Last(requesterPID)
	assert.Contains(t, forwarded.Text, "&lt;b&gt;bold&lt;/b&gt; &amp; co")
}
