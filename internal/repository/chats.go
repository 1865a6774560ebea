package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GrSkiy/psycho-backend/internal/model/chat"
)

const pgForeignKeyViolation = "23503"

// ChatRepository is the durable gateway for chats and their messages. All
// writes are atomic single-row inserts; message order within a chat is the
// insertion order and is never rewritten.
type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateChat provisions an empty chat owned by the given user.
func (r *ChatRepository) CreateChat(ctx context.Context, userID int64) (chat.Chat, error) {
	var c chat.Chat
	row := r.db.QueryRow(ctx,
		`INSERT INTO chats (user_id) VALUES ($1) RETURNING id, user_id, created_at`,
		userID)
	if err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return chat.Chat{}, chat.ErrUserNotFound
		}
		return chat.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepository) GetChat(ctx context.Context, id int64) (chat.Chat, error) {
	var c chat.Chat
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM chats WHERE id = $1`, id)
	if err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Chat{}, chat.ErrChatNotFound
		}
		return chat.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// CreateMessage appends one message to a chat. The chat must exist at write
// time; a rejected foreign key surfaces as ErrChatNotFound so the caller can
// report it without a prior read.
func (r *ChatRepository) CreateMessage(ctx context.Context, chatID int64, sender chat.SenderType, text string) (chat.Message, error) {
	var m chat.Message
	row := r.db.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender, text)
		 VALUES ($1, $2, $3)
		 RETURNING id, chat_id, sender, text, created_at`,
		chatID, sender, text)
	if err := row.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return chat.Message{}, chat.ErrChatNotFound
		}
		return chat.Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// ListMessages returns a chat's messages ascending by creation time, for
// history replay on join.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID int64, offset, limit int) ([]chat.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chat_id, sender, text, created_at
		 FROM messages
		 WHERE chat_id = $1
		 ORDER BY created_at ASC, id ASC
		 OFFSET $2 LIMIT $3`,
		chatID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecentMessages returns up to limit of the newest messages in a chat,
// still in ascending order so the analysis job sees the conversation as it
// happened.
func (r *ChatRepository) ListRecentMessages(ctx context.Context, chatID int64, limit int) ([]chat.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chat_id, sender, text, created_at FROM (
		     SELECT id, chat_id, sender, text, created_at
		     FROM messages
		     WHERE chat_id = $1
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListChatsByUser returns a user's chats newest first with the first
// message's text as a preview.
func (r *ChatRepository) ListChatsByUser(ctx context.Context, userID int64, offset, limit int) ([]chat.ChatInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.created_at,
		        (SELECT m.text FROM messages m
		         WHERE m.chat_id = c.id
		         ORDER BY m.created_at ASC, m.id ASC
		         LIMIT 1) AS first_message_text
		 FROM chats c
		 WHERE c.user_id = $1
		 ORDER BY c.created_at DESC, c.id DESC
		 OFFSET $2 LIMIT $3`,
		userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	infos := make([]chat.ChatInfo, 0, limit)
	for rows.Next() {
		var info chat.ChatInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.FirstMessageText); err != nil {
			return nil, fmt.Errorf("scan chat info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return infos, nil
}

func scanMessages(rows pgx.Rows) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, 32)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return messages, nil
}
