package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories and runs them inside a shared transaction when asked.
type Store interface {
	Users() UserRepository
	Topics() TopicRepository
	Chats() ChatRepository
	Tickets() TicketRepository
	Messages() TicketMessageRepository
	// Now returns the store's authoritative clock.
	Now(ctx context.Context) (time.Time, error)
	// WithinTx runs fn against a transactional Store. Returning an error rolls back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Users() UserRepository             { return NewUserRepository(s.db) }
func (s *pgStore) Topics() TopicRepository           { return NewTopicRepository(s.db) }
func (s *pgStore) Chats() ChatRepository             { return NewChatRepository(s.db) }
func (s *pgStore) Tickets() TicketRepository         { return NewTicketRepository(s.db) }
func (s *pgStore) Messages() TicketMessageRepository { return NewTicketMessageRepository(s.db) }

func (s *pgStore) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgStore{db: tx})
	})
}

// mapError translates driver errors into domain errors.
func mapError(resource string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return apperrors.NewConstraintViolation(pgErr.ConstraintName, err)
		}
	}
	return err
}

func expectRows(resource string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapError(resource, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound(resource, nil)
	}
	return nil
}
