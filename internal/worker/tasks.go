package worker

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeAnalyzeChat is the task name for post-hoc conversation analysis.
const TypeAnalyzeChat = "context:analyze_chat"

// QueueAnalysis is the dedicated queue partition for analysis jobs, kept
// separate so a backlog there never competes with other task types.
const QueueAnalysis = "analysis"

// AnalyzeChatPayload identifies the conversation to analyze.
type AnalyzeChatPayload struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

// NewAnalyzeChatTask builds the task for the given chat. No dedupe key is
// set: redelivery may produce duplicate diary records, which the at-least-
// once contract accepts.
func NewAnalyzeChatTask(chatID, userID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalyzeChatPayload{ChatID: chatID, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze payload: %w", err)
	}
	return asynq.NewTask(TypeAnalyzeChat, payload), nil
}

// ParseAnalyzeChatPayload decodes a task payload back into its fields.
func ParseAnalyzeChatPayload(data []byte) (AnalyzeChatPayload, error) {
	var p AnalyzeChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return AnalyzeChatPayload{}, fmt.Errorf("unmarshal analyze payload: %w", err)
	}
	if p.ChatID == 0 || p.UserID == 0 {
		return AnalyzeChatPayload{}, fmt.Errorf("analyze payload missing chat_id or user_id")
	}
	return p, nil
}
