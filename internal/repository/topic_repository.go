package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// TopicRepository manages routing categories and their responders.
type TopicRepository interface {
	Create(ctx context.Context, topic *domain.Topic) error
	GetByID(ctx context.Context, id int64) (*domain.Topic, error)
	GetByName(ctx context.Context, name string) (*domain.Topic, error)
	// Delete removes the topic and its responder links. Tickets keep their rows.
	Delete(ctx context.Context, id int64) error
	SetChat(ctx context.Context, id int64, chatID *int64) error
	List(ctx context.Context) ([]domain.Topic, error)
	// ListAvailable returns topics bound to an active chat.
	ListAvailable(ctx context.Context) ([]domain.Topic, error)
	AddResponder(ctx context.Context, topicID, userID int64) error
	RemoveResponder(ctx context.Context, topicID, userID int64) error
	Responders(ctx context.Context, topicID int64) ([]domain.User, error)
}

type topicRepository struct {
	db DBTX
}

// NewTopicRepository builds repository.
func NewTopicRepository(db DBTX) TopicRepository {
	return &topicRepository{db: db}
}

const topicColumns = `t.id, t.name, t.description, t.chat_id, t.created_at`

func (r *topicRepository) Create(ctx context.Context, topic *domain.Topic) error {
	const query = `
        INSERT INTO topics (name, description, chat_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, topic.Name, topic.Description, topic.ChatID).
		Scan(&topic.ID, &topic.CreatedAt)
	return mapError("topic", err)
}

func (r *topicRepository) GetByID(ctx context.Context, id int64) (*domain.Topic, error) {
	topic, err := scanTopic(r.db.QueryRow(ctx, `SELECT `+topicColumns+` FROM topics t WHERE t.id=$1`, id))
	if err != nil {
		return nil, mapError("topic", err)
	}
	return topic, nil
}

func (r *topicRepository) GetByName(ctx context.Context, name string) (*domain.Topic, error) {
	topic, err := scanTopic(r.db.QueryRow(ctx, `SELECT `+topicColumns+` FROM topics t WHERE t.name=$1`, name))
	if err != nil {
		return nil, mapError("topic", err)
	}
	return topic, nil
}

func (r *topicRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM topics WHERE id=$1`, id)
	return expectRows("topic", tag, err)
}

func (r *topicRepository) SetChat(ctx context.Context, id int64, chatID *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE topics SET chat_id=$1 WHERE id=$2`, chatID, id)
	return expectRows("topic", tag, err)
}

func (r *topicRepository) List(ctx context.Context) ([]domain.Topic, error) {
	return r.list(ctx, `SELECT `+topicColumns+` FROM topics t ORDER BY t.name`)
}

func (r *topicRepository) ListAvailable(ctx context.Context) ([]domain.Topic, error) {
	const query = `
        SELECT ` + topicColumns + `
        FROM topics t JOIN chats c ON c.id = t.chat_id
        WHERE c.is_active
        ORDER BY t.name`
	return r.list(ctx, query)
}

func (r *topicRepository) AddResponder(ctx context.Context, topicID, userID int64) error {
	const query = `
        INSERT INTO topic_responders (topic_id, user_id) VALUES ($1, $2)
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, topicID, userID)
	return mapError("topic", err)
}

func (r *topicRepository) RemoveResponder(ctx context.Context, topicID, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM topic_responders WHERE topic_id=$1 AND user_id=$2`, topicID, userID)
	return mapError("topic", err)
}

func (r *topicRepository) Responders(ctx context.Context, topicID int64) ([]domain.User, error) {
	const query = `
        SELECT u.id, u.platform_id, u.username, u.first_name, u.display_name, u.role, u.created_at, u.updated_at
        FROM users u JOIN topic_responders tr ON tr.user_id = u.id
        WHERE tr.topic_id=$1
        ORDER BY u.id`
	rows, err := r.db.Query(ctx, query, topicID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (r *topicRepository) list(ctx context.Context, query string) ([]domain.Topic, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *topic)
	}
	return result, rows.Err()
}

func scanTopic(row pgx.Row) (*domain.Topic, error) {
	var topic domain.Topic
	if err := row.Scan(
		&topic.ID,
		&topic.Name,
		&topic.Description,
		&topic.ChatID,
		&topic.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &topic, nil
}
