package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// ChatRepository manages registered group conversations.
type ChatRepository interface {
	// Upsert registers the chat, or refreshes its title and reactivates it.
	Upsert(ctx context.Context, platformChatID int64, title string) (*domain.Chat, error)
	SetActive(ctx context.Context, platformChatID int64, active bool) error
	GetByID(ctx context.Context, id int64) (*domain.Chat, error)
	GetByPlatformID(ctx context.Context, platformChatID int64) (*domain.Chat, error)
	List(ctx context.Context) ([]domain.Chat, error)
}

type chatRepository struct {
	db DBTX
}

// NewChatRepository builds repository.
func NewChatRepository(db DBTX) ChatRepository {
	return &chatRepository{db: db}
}

const chatColumns = `id, platform_chat_id, title, is_active, created_at, updated_at`

func (r *chatRepository) Upsert(ctx context.Context, platformChatID int64, title string) (*domain.Chat, error) {
	const query = `
        INSERT INTO chats (platform_chat_id, title, is_active)
        VALUES ($1, $2, TRUE)
        ON CONFLICT (platform_chat_id)
        DO UPDATE SET title=EXCLUDED.title, is_active=TRUE, updated_at=clock_timestamp()
        RETURNING ` + chatColumns
	chat, err := scanChat(r.db.QueryRow(ctx, query, platformChatID, title))
	if err != nil {
		return nil, mapError("chat", err)
	}
	return chat, nil
}

func (r *chatRepository) SetActive(ctx context.Context, platformChatID int64, active bool) error {
	const query = `UPDATE chats SET is_active=$1, updated_at=clock_timestamp() WHERE platform_chat_id=$2`
	tag, err := r.db.Exec(ctx, query, active, platformChatID)
	return expectRows("chat", tag, err)
}

func (r *chatRepository) GetByID(ctx context.Context, id int64) (*domain.Chat, error) {
	chat, err := scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id))
	if err != nil {
		return nil, mapError("chat", err)
	}
	return chat, nil
}

func (r *chatRepository) GetByPlatformID(ctx context.Context, platformChatID int64) (*domain.Chat, error) {
	chat, err := scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE platform_chat_id=$1`, platformChatID))
	if err != nil {
		return nil, mapError("chat", err)
	}
	return chat, nil
}

func (r *chatRepository) List(ctx context.Context) ([]domain.Chat, error) {
	rows, err := r.db.Query(ctx, `SELECT `+chatColumns+` FROM chats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *chat)
	}
	return result, rows.Err()
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var chat domain.Chat
	if err := row.Scan(
		&chat.ID,
		&chat.PlatformChatID,
		&chat.Title,
		&chat.Active,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &chat, nil
}
