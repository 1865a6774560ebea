package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/GrSkiy/psycho-backend/internal/model/chat"
	"github.com/GrSkiy/psycho-backend/internal/model/diary"
	"github.com/GrSkiy/psycho-backend/internal/service/ai"
)

// MessageSource reads the tail of a conversation for analysis.
type MessageSource interface {
	ListRecentMessages(ctx context.Context, chatID int64, limit int) ([]chat.Message, error)
}

// EntryStore persists diary records.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry diary.NewEntry) (diary.Entry, error)
}

// ConversationAnalyzer judges whether a conversation merits a diary record.
type ConversationAnalyzer interface {
	AnalyzeConversation(ctx context.Context, messages []chat.Message) (*ai.Analysis, error)
}

// Analyzer consumes analyze-chat tasks: it reads the most recent messages of
// the chat, asks the model for a judgement, and writes a diary entry when
// the exchange is significant.
type Analyzer struct {
	messages     MessageSource
	entries      EntryStore
	analyzer     ConversationAnalyzer
	messageLimit int
	log          *slog.Logger
}

func NewAnalyzer(messages MessageSource, entries EntryStore, analyzer ConversationAnalyzer, messageLimit int, log *slog.Logger) *Analyzer {
	if messageLimit <= 0 {
		messageLimit = 30
	}
	return &Analyzer{
		messages:     messages,
		entries:      entries,
		analyzer:     analyzer,
		messageLimit: messageLimit,
		log:          log,
	}
}

// HandleAnalyzeChat is the asynq handler for TypeAnalyzeChat. Returning an
// error lets asynq retry up to the task's MaxRetry.
func (a *Analyzer) HandleAnalyzeChat(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseAnalyzeChatPayload(t.Payload())
	if err != nil {
		// Malformed payloads never become valid; skip retries.
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	log := a.log.With("chat_id", payload.ChatID, "user_id", payload.UserID)

	messages, err := a.messages.ListRecentMessages(ctx, payload.ChatID, a.messageLimit)
	if err != nil {
		return fmt.Errorf("load messages for analysis: %w", err)
	}
	if len(messages) == 0 {
		log.Info("no messages to analyze")
		return nil
	}

	analysis, err := a.analyzer.AnalyzeConversation(ctx, messages)
	if err != nil {
		return fmt.Errorf("analyze conversation: %w", err)
	}

	if !analysis.ShouldCreateDiary {
		log.Info("analysis complete, no diary entry needed")
		return nil
	}

	entry := diary.NewEntry{
		UserID:        payload.UserID,
		Title:         analysis.DiaryEntryTitle,
		Content:       analysis.DiaryEntryContent,
		EmotionTags:   analysis.Emotions,
		RelatedChatID: &payload.ChatID,
	}
	if entry.Title == "" {
		entry.Title = "New entry"
	}
	if analysis.MainTopic != "" {
		topic := analysis.MainTopic
		entry.EventType = &topic
	}
	if analysis.ImportanceScore > 0 {
		score := analysis.ImportanceScore
		entry.ImportanceScore = &score
	}

	created, err := a.entries.CreateEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("create diary entry: %w", err)
	}

	log.Info("diary entry created", "entry_id", created.ID, "title", created.Title)
	return nil
}
