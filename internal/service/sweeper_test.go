package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

func TestSweepClosesInactiveTicketsAndNotifiesBothSides(t *testing.T) {
	f := newFixture(t)
	stale := f.createTicket(t, "old request")
	f.store.Clock.Advance(45 * time.Minute)
	fresh := f.createTicket(t, "new request")
	f.messenger.Reset()

	report, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Candidates: 1, Closed: 1}, report)

	assert.Equal(t, domain.TicketStatusClosed, f.ticket(t, stale.ID).Status)
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, fresh.ID).Status)

	toRequester := f.messenger.SentTo(requesterPID)
	require.Len(t, toRequester, 1)
	assert.Contains(t, toRequester[0].Text, "closed automatically")

	toGroup := f.messenger.SentTo(groupChatID)
	require.Len(t, toGroup, 1)
	require.NotNil(t, toGroup[0].ReplyToMessageID)
	assert.Equal(t, *f.ticket(t, stale.ID).GroupMessageID, *toGroup[0].ReplyToMessageID)
}

func TestSweepNoticeFailuresDoNotAbortRun(t *testing.T) {
	f := newFixture(t)
	first := f.createTicket(t, "first")
	second := f.createTicket(t, "second")
	f.store.Clock.Advance(time.Hour)
	f.messenger.FailConversation(requesterPID, errors.New("Forbidden: bot was blocked by the user"))
	f.messenger.Reset()

	report, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Closed)
	assert.Equal(t, 2, report.NoticeFailures)

	assert.Equal(t, domain.TicketStatusClosed, f.ticket(t, first.ID).Status)
	assert.Equal(t, domain.TicketStatusClosed, f.ticket(t, second.ID).Status)
	assert.Len(t, f.messenger.SentTo(requesterPID), 2, "one attempt per ticket")
	assert.Len(t, f.messenger.SentTo(groupChatID), 2)
}

func TestSweepSkipsClosedAndIsRepeatable(t *testing.T) {
	f := newFixture(t)
	f.createTicket(t, "to sweep")
	f.store.Clock.Advance(time.Hour)

	report, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed)
	f.messenger.Reset()

	report, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Empty(t, f.messenger.Attempts())
}

func TestSweepDisabledWithoutThreshold(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "ancient")
	f.store.Clock.Advance(24 * time.Hour)

	disabled := NewSweeper(f.store, f.lifecycle, f.messenger, nil, zap.NewNop(), SweeperConfig{})
	assert.False(t, disabled.Enabled())

	report, err := disabled.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "cancelled")
	f.store.Clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	report, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 0, report.Closed)
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}
