package chat

import (
	"errors"
	"time"
)

var (
	// ErrChatNotFound is returned when a chat id does not resolve to a row,
	// including the case where a message insert is rejected because the
	// owning chat vanished.
	ErrChatNotFound = errors.New("chat not found")
	ErrUserNotFound = errors.New("user not found")
)

// SenderType identifies which side of the conversation produced a message.
type SenderType string

const (
	SenderUser SenderType = "USER"
	SenderBot  SenderType = "BOT"
)

// Chat is one conversation thread owned by a single user. A chat with zero
// messages is valid: it has been created but not yet populated.
type Chat struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single persisted turn half. Immutable once written; ordering
// within a chat is defined by insertion time and never changes.
type Message struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"chat_id"`
	Sender    SenderType `json:"sender"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"timestamp"`
}

// ChatInfo is the listing projection for a user's chats: the id, creation
// time and the first message's text as a preview.
type ChatInfo struct {
	ID               int64     `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	FirstMessageText *string   `json:"first_message_text"`
}
