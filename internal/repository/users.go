package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GrSkiy/psycho-backend/internal/model/chat"
)

// UserRepository provisions and reads users.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate returns the user with the given id, inserting the row on first
// contact. The id comes from the upstream auth collaborator and is treated as
// opaque here.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64) (chat.User, error) {
	user, err := r.GetByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, chat.ErrUserNotFound) {
		return chat.User{}, err
	}

	username := fmt.Sprintf("user_%d", id)
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET id = users.id
		 RETURNING id, username, created_at`,
		id, username)

	if err := row.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
		return chat.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetByID fetches a single user.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (chat.User, error) {
	var user chat.User
	row := r.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id)
	if err := row.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.User{}, chat.ErrUserNotFound
		}
		return chat.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
