package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// TicketMessageRepository manages ticket transcript entries.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	// FindByGroupMessage matches a message id produced in the given group conversation.
	FindByGroupMessage(ctx context.Context, platformChatID, messageID int64) (*domain.TicketMessage, error)
	// FindByRequesterMessage matches a message id produced in the given requester's private conversation.
	FindByRequesterMessage(ctx context.Context, requesterPlatformID, messageID int64) (*domain.TicketMessage, error)
	// SetOutboundID records the id produced by forwarding the message to side.
	SetOutboundID(ctx context.Context, id int64, side domain.Side, messageID int64) error
	MarkDeliveryFailed(ctx context.Context, id int64, reason string) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	db DBTX
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(db DBTX) TicketMessageRepository {
	return &ticketMessageRepository{db: db}
}

const messageColumns = `m.id, m.ticket_id, m.sender_platform_id, m.text, m.requester_message_id,
               m.group_message_id, m.delivery_error, m.created_at`

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_platform_id, text, requester_message_id, group_message_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderPlatformID,
		msg.Text,
		msg.RequesterMessageID,
		msg.GroupMessageID,
	).Scan(&msg.ID, &msg.CreatedAt)
	return mapError("ticket message", err)
}

func (r *ticketMessageRepository) FindByGroupMessage(ctx context.Context, platformChatID, messageID int64) (*domain.TicketMessage, error) {
	const query = `
        SELECT ` + messageColumns + `
        FROM ticket_messages m
        JOIN tickets t ON t.id = m.ticket_id
        JOIN chats c ON c.id = t.chat_id
        WHERE c.platform_chat_id=$1 AND m.group_message_id=$2
        ORDER BY m.id DESC LIMIT 1`
	return r.fetchSingle(ctx, query, platformChatID, messageID)
}

func (r *ticketMessageRepository) FindByRequesterMessage(ctx context.Context, requesterPlatformID, messageID int64) (*domain.TicketMessage, error) {
	const query = `
        SELECT ` + messageColumns + `
        FROM ticket_messages m
        JOIN tickets t ON t.id = m.ticket_id
        JOIN users u ON u.id = t.requester_id
        WHERE u.platform_id=$1 AND m.requester_message_id=$2
        ORDER BY m.id DESC LIMIT 1`
	return r.fetchSingle(ctx, query, requesterPlatformID, messageID)
}

func (r *ticketMessageRepository) SetOutboundID(ctx context.Context, id int64, side domain.Side, messageID int64) error {
	column := "requester_message_id"
	if side == domain.SideGroup {
		column = "group_message_id"
	}
	query := fmt.Sprintf(`UPDATE ticket_messages SET %s=$1, delivery_error=NULL WHERE id=$2`, column)
	tag, err := r.db.Exec(ctx, query, messageID, id)
	return expectRows("ticket message", tag, err)
}

func (r *ticketMessageRepository) MarkDeliveryFailed(ctx context.Context, id int64, reason string) error {
	tag, err := r.db.Exec(ctx, `UPDATE ticket_messages SET delivery_error=$1 WHERE id=$2`, reason, id)
	return expectRows("ticket message", tag, err)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM ticket_messages m WHERE m.ticket_id=$1 ORDER BY m.created_at ASC, m.id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func (r *ticketMessageRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.TicketMessage, error) {
	msg, err := scanMessage(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError("ticket message", err)
	}
	return msg, nil
}

func scanMessage(row pgx.Row) (*domain.TicketMessage, error) {
	var msg domain.TicketMessage
	if err := row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderPlatformID,
		&msg.Text,
		&msg.RequesterMessageID,
		&msg.GroupMessageID,
		&msg.DeliveryError,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}
