package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
)

func TestNextStatus(t *testing.T) {
	open, progress, closed := domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusClosed
	tests := []struct {
		from    domain.TicketStatus
		trigger Trigger
		want    domain.TicketStatus
		ok      bool
	}{
		{open, TriggerResponderReply, progress, true},
		{open, TriggerTake, progress, true},
		{open, TriggerRequesterReply, open, true},
		{open, TriggerResponderClose, closed, true},
		{open, TriggerRequesterClose, closed, true},
		{open, TriggerInactivity, closed, true},
		{progress, TriggerResponderReply, progress, true},
		{progress, TriggerRequesterReply, progress, true},
		{progress, TriggerTake, progress, true},
		{progress, TriggerInactivity, closed, true},
		{closed, TriggerResponderReply, closed, false},
		{closed, TriggerTake, closed, false},
		{closed, TriggerResponderClose, closed, false},
		{closed, TriggerInactivity, closed, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"/"+string(tc.trigger), func(t *testing.T) {
			got, ok := NextStatus(tc.from, tc.trigger)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestFireRefreshesUpdatedAtAndPublishesOnlyChanges(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "printer broken")
	before := f.ticket(t, ticket.ID).UpdatedAt

	f.store.Clock.Advance(time.Minute)
	tr, err := f.lifecycle.Fire(f.ctx, ticket.ID, TriggerTake, events.Actor{})
	require.NoError(t, err)
	assert.True(t, tr.Changed())
	assert.True(t, f.ticket(t, ticket.ID).UpdatedAt.After(before))
	assert.EqualValues(t, 1, f.statusEvents.Load())

	f.store.Clock.Advance(time.Minute)
	tr, err = f.lifecycle.Fire(f.ctx, ticket.ID, TriggerResponderReply, events.Actor{})
	require.NoError(t, err)
	assert.False(t, tr.Changed())
	assert.Equal(t, f.store.Clock.Now(), f.ticket(t, ticket.ID).UpdatedAt)
	assert.EqualValues(t, 1, f.statusEvents.Load(), "no-op transition must not publish")
}

func TestCloseIsIdempotentAndTerminal(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "vpn down")

	tr, err := f.lifecycle.Fire(f.ctx, ticket.ID, TriggerResponderClose, events.Actor{})
	require.NoError(t, err)
	require.True(t, tr.Changed())
	closedAt := f.ticket(t, ticket.ID).UpdatedAt

	f.store.Clock.Advance(time.Minute)
	for _, trigger := range []Trigger{TriggerRequesterClose, TriggerInactivity, TriggerTake, TriggerResponderReply} {
		tr, err := f.lifecycle.Fire(f.ctx, ticket.ID, trigger, events.Actor{})
		require.NoError(t, err)
		assert.False(t, tr.Changed())
		assert.Equal(t, domain.TicketStatusClosed, tr.To)
	}
	got := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusClosed, got.Status)
	assert.Equal(t, closedAt, got.UpdatedAt)
	assert.EqualValues(t, 1, f.statusEvents.Load())
}

func TestConcurrentClosesProduceSingleTerminalWrite(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "laptop")
	f.store.Clock.Advance(2 * time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var (
				tr  *Transition
				err error
			)
			if i%2 == 0 {
				tr, err = f.lifecycle.Fire(f.ctx, ticket.ID, TriggerResponderClose, events.Actor{})
			} else {
				tr, err = f.lifecycle.CloseInactive(f.ctx, ticket.ID, 30*time.Minute)
			}
			assert.NoError(t, err)
			if tr.Changed() {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, changed)
	assert.EqualValues(t, 1, f.statusEvents.Load())
	assert.Equal(t, domain.TicketStatusClosed, f.ticket(t, ticket.ID).Status)
}

func TestCloseInactiveLeavesRecentlyTouchedTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "mouse")
	f.store.Clock.Advance(10 * time.Minute)

	tr, err := f.lifecycle.CloseInactive(f.ctx, ticket.ID, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, tr.Changed())
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}
