package chat

import (
	"time"

	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
)

// Server-to-client frames. Field names are part of the wire protocol.

type historyMessage struct {
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chat_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type historyFrame struct {
	Type     string           `json:"type"`
	ChatID   int64            `json:"chat_id"`
	Messages []historyMessage `json:"messages"`
}

type chatCreatedFrame struct {
	Type   string `json:"type"`
	ChatID int64  `json:"chat_id"`
}

type newChatStartedFrame struct {
	Type string `json:"type"`
}

type messageFrame struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	ChatID int64  `json:"chat_id"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newHistoryFrame(chatID int64, messages []chatmodel.Message) historyFrame {
	payload := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, historyMessage{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Sender:    string(m.Sender),
			Text:      m.Text,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return historyFrame{Type: "history", ChatID: chatID, Messages: payload}
}
