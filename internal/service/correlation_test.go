package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-relay/internal/domain"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

func TestResolveTiers(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "printer broken")
	stored := f.ticket(t, ticket.ID)
	index := NewCorrelationIndex(f.store)

	corr, err := index.Resolve(f.ctx, domain.SideGroup, groupChatID, *stored.GroupMessageID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, corr.Ticket.ID)
	assert.Nil(t, corr.Message, "announcement matches on the ticket itself")

	res, err := f.router.Route(f.ctx, f.groupReply(*stored.GroupMessageID, 11, "hello"))
	require.NoError(t, err)

	corr, err = index.Resolve(f.ctx, domain.SideGroup, groupChatID, 11)
	require.NoError(t, err)
	require.NotNil(t, corr.Message)
	assert.Equal(t, res.Message.ID, corr.Message.ID)

	corr, err = index.Resolve(f.ctx, domain.SideRequester, requesterPID, *res.Message.RequesterMessageID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, corr.Ticket.ID)
	assert.EqualValues(t, 11, *corr.CounterpartID(domain.SideGroup))

	_, err = index.Resolve(f.ctx, domain.SideGroup, groupChatID, 424242)
	assert.ErrorIs(t, err, apperrors.ErrUnresolved)
	_, err = index.Resolve(f.ctx, domain.SideRequester, groupChatID, *stored.RequesterMessageID)
	assert.ErrorIs(t, err, apperrors.ErrUnresolved, "lookups are scoped to the raising conversation")
}
