package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-relay/internal/domain"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

var ticketColumnNames = []string{
	"id", "title", "description", "status", "requester_id", "topic_id", "chat_id",
	"requester_message_id", "group_message_id", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return mock
}

func int64Ptr(v int64) *int64 { return &v }

func ticketRows(tickets ...domain.Ticket) *pgxmock.Rows {
	rows := pgxmock.NewRows(ticketColumnNames)
	for _, t := range tickets {
		rows.AddRow(t.ID, t.Title, t.Description, t.Status, t.RequesterID, t.TopicID, t.ChatID,
			t.RequesterMessageID, t.GroupMessageID, t.CreatedAt, t.UpdatedAt)
	}
	return rows
}

func sampleTicket(id int64, status domain.TicketStatus) domain.Ticket {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Ticket{
		ID:             id,
		Title:          "printer",
		Status:         status,
		RequesterID:    7,
		TopicID:        int64Ptr(3),
		ChatID:         int64Ptr(4),
		GroupMessageID: int64Ptr(55),
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestTicketCorrelationQueries(t *testing.T) {
	tests := []struct {
		name  string
		query string
		call  func(TicketRepository) (*domain.Ticket, error)
	}{
		{
			name:  "announcement in bound group",
			query: `FROM tickets t JOIN chats c ON c.id = t.chat_id WHERE c.platform_chat_id=$1 AND t.group_message_id=$2 ORDER BY t.id DESC LIMIT 1`,
			call: func(r TicketRepository) (*domain.Ticket, error) {
				return r.FindByGroupMessage(context.Background(), -1001, 55)
			},
		},
		{
			name:  "confirmation in requester chat",
			query: `FROM tickets t JOIN users u ON u.id = t.requester_id WHERE u.platform_id=$1 AND t.requester_message_id=$2 ORDER BY t.id DESC LIMIT 1`,
			call: func(r TicketRepository) (*domain.Ticket, error) {
				return r.FindByRequesterMessage(context.Background(), -1001, 55)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectQuery(queryPattern(tc.query)).
				WithArgs(int64(-1001), int64(55)).
				WillReturnRows(ticketRows(sampleTicket(12, domain.TicketStatusOpen)))

			ticket, err := tc.call(NewTicketRepository(mock))
			require.NoError(t, err)
			assert.EqualValues(t, 12, ticket.ID)
			assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
		})
		t.Run(tc.name+" miss", func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectQuery(queryPattern(tc.query)).
				WithArgs(int64(-1001), int64(55)).
				WillReturnError(pgx.ErrNoRows)

			_, err := tc.call(NewTicketRepository(mock))
			assert.True(t, apperrors.IsNotFound(err))
		})
	}
}

func TestTicketTransitionReturnsUpdatedRow(t *testing.T) {
	mock := newMock(t)
	closed := sampleTicket(12, domain.TicketStatusClosed)
	mock.ExpectQuery(queryPattern(`UPDATE tickets t SET status=$1, updated_at=GREATEST(t.updated_at, clock_timestamp()) WHERE t.id=$2 RETURNING t.id, t.title`)).
		WithArgs(domain.TicketStatusClosed, int64(12)).
		WillReturnRows(ticketRows(closed))

	ticket, err := NewTicketRepository(mock).Transition(context.Background(), 12, domain.TicketStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	assert.Equal(t, closed.UpdatedAt, ticket.UpdatedAt)
}

func TestTicketTransitionMissingRow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(queryPattern(`UPDATE tickets t SET status=$1`)).
		WithArgs(domain.TicketStatusInProgress, int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewTicketRepository(mock).Transition(context.Background(), 404, domain.TicketStatusInProgress)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTicketListInactivePassesThresholdInSeconds(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(queryPattern(`WHERE t.status IN ('open', 'in_progress') AND t.updated_at < clock_timestamp() - make_interval(secs => $1) ORDER BY t.updated_at ASC`)).
		WithArgs(float64(5400)).
		WillReturnRows(ticketRows(sampleTicket(1, domain.TicketStatusOpen), sampleTicket(2, domain.TicketStatusInProgress)))

	tickets, err := NewTicketRepository(mock).ListInactive(context.Background(), 90*time.Minute)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.EqualValues(t, 1, tickets[0].ID)
	assert.EqualValues(t, 2, tickets[1].ID)
}

func TestTicketListBuildsFilter(t *testing.T) {
	const order = ` ORDER BY t.updated_at DESC, t.id DESC `
	tests := []struct {
		name   string
		filter TicketFilter
		where  string
		tail   string
		args   []any
	}{
		{
			name:  "no filter uses defaults",
			where: `FROM tickets t WHERE 1=1` + order,
			tail:  `LIMIT 20 OFFSET 0`,
		},
		{
			name:   "negative offset is clamped",
			filter: TicketFilter{Limit: 5, Offset: -3},
			where:  `FROM tickets t WHERE 1=1` + order,
			tail:   `LIMIT 5 OFFSET 0`,
		},
		{
			name: "every filter numbers placeholders in order",
			filter: TicketFilter{
				RequesterID:     int64Ptr(7),
				ResponderUserID: int64Ptr(9),
				Statuses:        []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
				Limit:           10,
				Offset:          30,
			},
			where: `WHERE 1=1 AND t.requester_id=$1 AND t.topic_id IN (SELECT topic_id FROM topic_responders WHERE user_id=$2) AND t.status IN ($3,$4)` + order,
			tail:  `LIMIT 10 OFFSET 30`,
			args:  []any{int64(7), int64(9), domain.TicketStatusOpen, domain.TicketStatusInProgress},
		},
		{
			name:   "statuses only",
			filter: TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusClosed}},
			where:  `WHERE 1=1 AND t.status IN ($1)` + order,
			tail:   `LIMIT 20 OFFSET 0`,
			args:   []any{domain.TicketStatusClosed},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := newMock(t)
			expect := mock.ExpectQuery(queryPattern(tc.where + tc.tail + `$`))
			if len(tc.args) > 0 {
				expect = expect.WithArgs(tc.args...)
			}
			expect.WillReturnRows(ticketRows(sampleTicket(3, domain.TicketStatusOpen)))

			tickets, err := NewTicketRepository(mock).List(context.Background(), tc.filter)
			require.NoError(t, err)
			assert.Len(t, tickets, 1)
		})
	}
}

func TestTicketSetGroupMessageIDMissingRow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(queryPattern(`UPDATE tickets SET group_message_id=$1`)).
		WithArgs(int64(88), int64(12)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewTicketRepository(mock).SetGroupMessageID(context.Background(), 12, 88)
	assert.True(t, apperrors.IsNotFound(err))
}

// queryPattern matches sql regardless of how the repositories indent it. A
// trailing $ anchors the match at the end of the statement.
func queryPattern(sql string) string {
	anchored := strings.HasSuffix(sql, "$")
	parts := strings.Fields(strings.TrimSuffix(sql, "$"))
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	pattern := strings.Join(parts, `\s+`)
	if anchored {
		pattern += `\s*$`
	}
	return pattern
}
