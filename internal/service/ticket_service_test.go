package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

func TestCreateTicketValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.CreateTicket(f.ctx, TicketCreateInput{RequesterID: f.requester.ID, TopicID: f.topic.ID, Title: " ab "})
	assert.True(t, errors.Is(err, apperrors.NewValidationError("", nil)))

	unbound, err := f.directory.CreateTopic(f.ctx, "HR", nil)
	require.NoError(t, err)
	_, err = f.tickets.CreateTicket(f.ctx, TicketCreateInput{RequesterID: f.requester.ID, TopicID: unbound.ID, Title: "holiday"})
	assert.True(t, errors.Is(err, apperrors.NewValidationError("", nil)))

	_, err = f.tickets.CreateTicket(f.ctx, TicketCreateInput{RequesterID: f.requester.ID, TopicID: 4242, Title: "holiday"})
	assert.True(t, apperrors.IsNotFound(err))

	stats, err := f.tickets.Stats(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestCreateTicketSurvivesAnnouncementFailure(t *testing.T) {
	f := newFixture(t)
	f.messenger.FailConversation(groupChatID, errors.New("Bad Request: chat not found"))

	result, err := f.tickets.CreateTicket(f.ctx, TicketCreateInput{
		RequesterID: f.requester.ID,
		TopicID:     f.topic.ID,
		Title:       "printer broken",
		Description: strPtr("  paper jam  "),
	})
	require.NoError(t, err)
	assert.False(t, result.Announced)

	stored := f.ticket(t, result.Ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.GroupMessageID)
	require.NotNil(t, stored.RequesterMessageID)
	assert.Equal(t, "paper jam", *stored.Description)
}

func TestTakeInProgressNotifiesRequesterOnce(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "vpn")
	f.messenger.Reset()

	actor := events.Actor{Side: domain.SideGroup}
	tr, err := f.tickets.TakeInProgress(f.ctx, ticket.ID, actor)
	require.NoError(t, err)
	assert.True(t, tr.Changed())
	tr, err = f.tickets.TakeInProgress(f.ctx, ticket.ID, actor)
	require.NoError(t, err)
	assert.False(t, tr.Changed())

	assert.Len(t, f.messenger.SentTo(requesterPID), 1)
}

func TestRequesterCloseNotifiesGroupAndChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "badge")
	f.messenger.Reset()

	stranger := int64(777)
	_, err := f.tickets.Close(f.ctx, ticket.ID, events.Actor{Side: domain.SideRequester, PlatformID: &stranger})
	assert.True(t, errors.Is(err, apperrors.NewForbidden("")))

	owner := requesterPID
	tr, err := f.tickets.Close(f.ctx, ticket.ID, events.Actor{Side: domain.SideRequester, PlatformID: &owner})
	require.NoError(t, err)
	assert.Equal(t, TriggerRequesterClose, tr.Trigger)

	notices := f.messenger.SentTo(groupChatID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "closed by the requester")
	assert.Equal(t, *f.ticket(t, ticket.ID).GroupMessageID, *notices[0].ReplyToMessageID)
	assert.Empty(t, f.messenger.SentTo(requesterPID))
}

func TestListingsAndStats(t *testing.T) {
	f := newFixture(t)
	a := f.createTicket(t, "first")
	f.createTicket(t, "second")
	_, err := f.tickets.TakeInProgress(f.ctx, a.ID, events.Actor{})
	require.NoError(t, err)

	open, err := f.tickets.ListByStatus(f.ctx, []domain.TicketStatus{domain.TicketStatusOpen}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	_, err = f.tickets.ListByStatus(f.ctx, []domain.TicketStatus{"pending"}, 0, 0)
	assert.True(t, errors.Is(err, apperrors.NewValidationError("", nil)))

	mine, err := f.tickets.ListByRequester(f.ctx, f.requester.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	assigned, err := f.tickets.ListByResponder(f.ctx, f.responder.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, assigned, 2)

	stats, err := f.tickets.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStats{Total: 2, Open: 1, InProgress: 1}, *stats)
}
