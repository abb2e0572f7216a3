package repository

import (
	"context"
	"fmt"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the read side of the member directory plus the one
// column the messaging core owns: the online flag.
type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetOnlineUsers(ctx context.Context, online []uuid.UUID) error
}

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &PostgresUserRepo{
		pool: pool,
	}
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, name, COALESCE(avatar_url, ''), is_online, created_at, updated_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.AvatarURL,
		&user.IsOnline,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// SetOnlineUsers makes the is_online column mirror the given set:
// listed users become online, everyone else offline.
func (r *PostgresUserRepo) SetOnlineUsers(ctx context.Context, online []uuid.UUID) error {
	query := `
		UPDATE users
		SET is_online = (id = ANY($1)), updated_at = now()
		WHERE is_online != (id = ANY($1))`

	_, err := r.pool.Exec(ctx, query, online)
	if err != nil {
		return fmt.Errorf("failed to flush online flags: %w", err)
	}

	return nil
}
