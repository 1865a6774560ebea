package diary

import "time"

// Entry is a durable summary artifact produced when a conversation is judged
// significant, or created manually through the diary API.
type Entry struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	EventType       *string   `json:"event_type,omitempty"`
	EmotionTags     []string  `json:"emotion_tags,omitempty"`
	ImportanceScore *float64  `json:"importance_score,omitempty"`
	RelatedChatID   *int64    `json:"related_chat_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEntry carries the fields accepted when creating an entry.
type NewEntry struct {
	UserID          int64
	Title           string
	Content         string
	EventType       *string
	EmotionTags     []string
	ImportanceScore *float64
	RelatedChatID   *int64
}
