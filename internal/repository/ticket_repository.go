package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses        []domain.TicketStatus
	RequesterID     *int64
	ResponderUserID *int64
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	// FindByGroupMessage matches the announcement id of a ticket bound to the given group conversation.
	FindByGroupMessage(ctx context.Context, platformChatID, messageID int64) (*domain.Ticket, error)
	// FindByRequesterMessage matches the requester-side id of a ticket owned by the given requester.
	FindByRequesterMessage(ctx context.Context, requesterPlatformID, messageID int64) (*domain.Ticket, error)
	SetGroupMessageID(ctx context.Context, id, messageID int64) error
	SetRequesterMessageID(ctx context.Context, id, messageID int64) error
	// Transition writes status and refreshes updated_at in a single statement.
	Transition(ctx context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error)
	// ListInactive returns open and in-progress tickets untouched for longer than threshold.
	ListInactive(ctx context.Context, threshold time.Duration) ([]domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `t.id, t.title, t.description, t.status, t.requester_id, t.topic_id, t.chat_id,
               t.requester_message_id, t.group_message_id, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, requester_id, topic_id, chat_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.RequesterID,
		ticket.TopicID,
		ticket.ChatID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return mapError("ticket", err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id=$1`, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id=$1 FOR UPDATE`, id)
}

func (r *ticketRepository) FindByGroupMessage(ctx context.Context, platformChatID, messageID int64) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t JOIN chats c ON c.id = t.chat_id
        WHERE c.platform_chat_id=$1 AND t.group_message_id=$2
        ORDER BY t.id DESC LIMIT 1`
	return r.fetchSingle(ctx, query, platformChatID, messageID)
}

func (r *ticketRepository) FindByRequesterMessage(ctx context.Context, requesterPlatformID, messageID int64) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t JOIN users u ON u.id = t.requester_id
        WHERE u.platform_id=$1 AND t.requester_message_id=$2
        ORDER BY t.id DESC LIMIT 1`
	return r.fetchSingle(ctx, query, requesterPlatformID, messageID)
}

func (r *ticketRepository) SetGroupMessageID(ctx context.Context, id, messageID int64) error {
	const query = `
        UPDATE tickets SET group_message_id=$1, updated_at=GREATEST(updated_at, clock_timestamp())
        WHERE id=$2`
	tag, err := r.db.Exec(ctx, query, messageID, id)
	return expectRows("ticket", tag, err)
}

func (r *ticketRepository) SetRequesterMessageID(ctx context.Context, id, messageID int64) error {
	const query = `
        UPDATE tickets SET requester_message_id=$1, updated_at=GREATEST(updated_at, clock_timestamp())
        WHERE id=$2`
	tag, err := r.db.Exec(ctx, query, messageID, id)
	return expectRows("ticket", tag, err)
}

func (r *ticketRepository) Transition(ctx context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets t SET status=$1, updated_at=GREATEST(t.updated_at, clock_timestamp())
        WHERE t.id=$2
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, status, id)
}

func (r *ticketRepository) ListInactive(ctx context.Context, threshold time.Duration) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t
        WHERE t.status IN ('open', 'in_progress')
          AND t.updated_at < clock_timestamp() - make_interval(secs => $1)
        ORDER BY t.updated_at ASC`
	rows, err := r.db.Query(ctx, query, threshold.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets t`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("t.requester_id=$%d", len(args)))
	}
	if filter.ResponderUserID != nil {
		args = append(args, *filter.ResponderUserID)
		clauses = append(clauses, fmt.Sprintf(
			"t.topic_id IN (SELECT topic_id FROM topic_responders WHERE user_id=$%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.updated_at DESC, t.id DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context) (*domain.TicketStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='open'),
               COUNT(*) FILTER (WHERE status='in_progress'),
               COUNT(*) FILTER (WHERE status='closed')
        FROM tickets`
	var stats domain.TicketStats
	if err := r.db.QueryRow(ctx, query).Scan(&stats.Total, &stats.Open, &stats.InProgress, &stats.Closed); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError("ticket", err)
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.RequesterID,
		&ticket.TopicID,
		&ticket.ChatID,
		&ticket.RequesterMessageID,
		&ticket.GroupMessageID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
