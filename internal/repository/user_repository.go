package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// UserRepository defines persistence access for chat participants.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByPlatformID(ctx context.Context, platformID int64) (*domain.User, error)
	// GetByUsername matches case-insensitively.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// LinkPlatformID attaches a platform id to a pre-registered row that has none yet.
	LinkPlatformID(ctx context.Context, id, platformID int64) error
	UpdateProfile(ctx context.Context, id int64, username, firstName *string) error
	SetRole(ctx context.Context, id int64, role domain.UserRole) error
	SetDisplayName(ctx context.Context, id int64, displayName *string) error
	List(ctx context.Context, role *domain.UserRole) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, platform_id, username, first_name, display_name, role, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (platform_id, username, first_name, display_name, role)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.PlatformID,
		user.Username,
		user.FirstName,
		user.DisplayName,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapError("user", err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByPlatformID(ctx context.Context, platformID int64) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE platform_id=$1`, platformID)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username)=LOWER($1)`, username)
}

func (r *userRepository) LinkPlatformID(ctx context.Context, id, platformID int64) error {
	const query = `
        UPDATE users SET platform_id=$1, updated_at=clock_timestamp()
        WHERE id=$2 AND platform_id IS NULL`
	tag, err := r.db.Exec(ctx, query, platformID, id)
	return expectRows("user", tag, err)
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, username, firstName *string) error {
	const query = `
        UPDATE users SET username=COALESCE($1, username), first_name=COALESCE($2, first_name),
            updated_at=clock_timestamp()
        WHERE id=$3`
	tag, err := r.db.Exec(ctx, query, username, firstName, id)
	return expectRows("user", tag, err)
}

func (r *userRepository) SetRole(ctx context.Context, id int64, role domain.UserRole) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role=$1, updated_at=clock_timestamp() WHERE id=$2`, role, id)
	return expectRows("user", tag, err)
}

func (r *userRepository) SetDisplayName(ctx context.Context, id int64, displayName *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET display_name=$1, updated_at=clock_timestamp() WHERE id=$2`, displayName, id)
	return expectRows("user", tag, err)
}

func (r *userRepository) List(ctx context.Context, role *domain.UserRole) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if role != nil {
		query += ` WHERE role=$1`
		args = append(args, *role)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError("user", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.PlatformID,
		&user.Username,
		&user.FirstName,
		&user.DisplayName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}
