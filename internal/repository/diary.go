package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GrSkiy/psycho-backend/internal/model/chat"
	"github.com/GrSkiy/psycho-backend/internal/model/diary"
)

// DiaryRepository stores the summary records produced by conversation
// analysis and by the manual diary endpoint.
type DiaryRepository struct {
	db *pgxpool.Pool
}

func NewDiaryRepository(db *pgxpool.Pool) *DiaryRepository {
	return &DiaryRepository{db: db}
}

// CreateEntry inserts one diary entry.
func (r *DiaryRepository) CreateEntry(ctx context.Context, entry diary.NewEntry) (diary.Entry, error) {
	var e diary.Entry
	row := r.db.QueryRow(ctx,
		`INSERT INTO diary_entries (user_id, title, content, event_type, emotion_tags, importance_score, related_chat_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, user_id, title, content, event_type, emotion_tags, importance_score, related_chat_id, created_at`,
		entry.UserID, entry.Title, entry.Content, entry.EventType,
		entry.EmotionTags, entry.ImportanceScore, entry.RelatedChatID)
	if err := scanEntry(row.Scan, &e); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return diary.Entry{}, chat.ErrUserNotFound
		}
		return diary.Entry{}, fmt.Errorf("create diary entry: %w", err)
	}
	return e, nil
}

// ListByUser returns a user's diary entries newest first.
func (r *DiaryRepository) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]diary.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, title, content, event_type, emotion_tags, importance_score, related_chat_id, created_at
		 FROM diary_entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 OFFSET $2 LIMIT $3`,
		userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	defer rows.Close()

	entries := make([]diary.Entry, 0, limit)
	for rows.Next() {
		var e diary.Entry
		if err := scanEntry(rows.Scan, &e); err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	return entries, nil
}

func scanEntry(scan func(dest ...any) error, e *diary.Entry) error {
	return scan(&e.ID, &e.UserID, &e.Title, &e.Content, &e.EventType,
		&e.EmotionTags, &e.ImportanceScore, &e.RelatedChatID, &e.CreatedAt)
}
