package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
)

// FallbackReply is sent and persisted when the completion provider fails.
// It is deliberately not appended to the model context.
const FallbackReply = "Something went wrong while generating a response. Please try again."

// Store is the durable gateway the session writes through.
type Store interface {
	CreateChat(ctx context.Context, userID int64) (chatmodel.Chat, error)
	GetChat(ctx context.Context, id int64) (chatmodel.Chat, error)
	CreateMessage(ctx context.Context, chatID int64, sender chatmodel.SenderType, text string) (chatmodel.Message, error)
	ListMessages(ctx context.Context, chatID int64, offset, limit int) ([]chatmodel.Message, error)
}

// Completer produces one assistant reply for a role-tagged context.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// Dispatcher enqueues background analysis of a chat. The returned task id is
// observability only; the session never waits on the job.
type Dispatcher interface {
	DispatchAnalysis(ctx context.Context, chatID, userID int64) (string, error)
}

// Sender delivers one frame to the client.
type Sender interface {
	Send(v any) error
}

// Session owns one live connection's conversation state: which chat is
// bound, the in-memory model context, and the turn cycle against the store,
// the completion provider and the analysis queue. Frames for one session are
// handled strictly sequentially by the owning connection goroutine, so no
// locking is needed here.
type Session struct {
	userID       int64
	store        Store
	completer    Completer
	dispatcher   Dispatcher
	sender       Sender
	context      *Context
	historyLimit int
	log          *slog.Logger

	chatID int64
	bound  bool
	closed bool
}

// NewSession binds the collaborators for one connection. The context must
// start with only the preamble.
func NewSession(userID int64, store Store, completer Completer, dispatcher Dispatcher, sender Sender, sessionCtx *Context, historyLimit int, log *slog.Logger) *Session {
	return &Session{
		userID:       userID,
		store:        store,
		completer:    completer,
		dispatcher:   dispatcher,
		sender:       sender,
		context:      sessionCtx,
		historyLimit: historyLimit,
		log:          log,
	}
}

type inboundFrame struct {
	Type   string          `json:"type"`
	Text   string          `json:"text"`
	ChatID json.RawMessage `json:"chat_id"`
}

// HandleFrame processes one inbound frame. A frame that parses as a JSON
// object is dispatched on its type; anything else is treated as literal
// message text, matching the client protocol's bare-text fallback.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	if s.closed {
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err == nil {
		switch {
		case frame.Type == "join":
			s.handleJoin(ctx, frame.ChatID)
		case frame.Text != "":
			s.handleText(ctx, frame.Text)
		default:
			s.log.Debug("ignoring frame without text or known type")
		}
		return
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return
	}
	// A frame that is a bare JSON string carries the message inside the
	// quotes; store the unquoted value, not its encoding.
	var quoted string
	if err := json.Unmarshal(data, &quoted); err == nil {
		text = strings.TrimSpace(quoted)
		if text == "" {
			return
		}
	}
	s.handleText(ctx, text)
}

// Close marks the session terminal. No further frames are processed and no
// I/O is performed on its behalf.
func (s *Session) Close() {
	s.closed = true
}

// NotifyFatal makes a best-effort attempt to tell the client the connection
// is going away for an unrecoverable reason, then closes the session.
func (s *Session) NotifyFatal(message string) {
	if s.closed {
		return
	}
	// Swallow send failures: the transport may already be gone.
	_ = s.sender.Send(errorFrame{Type: "error", Message: message})
	s.Close()
}

// handleJoin resumes an existing chat or starts fresh when the id is null.
func (s *Session) handleJoin(ctx context.Context, rawID json.RawMessage) {
	chatID, err := parseChatID(rawID)
	if err != nil {
		s.sendError("invalid chat id format")
		return
	}

	if chatID == nil {
		// Explicit fresh start. Idempotent: repeating it is harmless.
		s.bound = false
		s.context.Reset()
		s.send(newChatStartedFrame{Type: "new_chat_started"})
		return
	}

	found, err := s.store.GetChat(ctx, *chatID)
	if err != nil && !errors.Is(err, chatmodel.ErrChatNotFound) {
		s.log.Error("chat lookup failed", "chat_id", *chatID, "error", err)
		s.sendError("failed to join chat")
		return
	}
	// A chat owned by someone else is reported exactly like a missing one so
	// the response does not leak which ids exist.
	if err != nil || found.UserID != s.userID {
		s.sendError(fmt.Sprintf("chat %d not found or unavailable", *chatID))
		return
	}

	s.chatID = *chatID
	s.bound = true

	messages, err := s.store.ListMessages(ctx, s.chatID, 0, s.historyLimit)
	if err != nil {
		s.log.Error("history load failed", "chat_id", s.chatID, "error", err)
		s.context.Reset()
		s.sendError(fmt.Sprintf("failed to load history for chat %d", s.chatID))
		return
	}

	s.context.Rebuild(messages)
	s.send(newHistoryFrame(s.chatID, messages))
	s.log.Info("joined chat", "chat_id", s.chatID, "history_len", len(messages))
}

// handleText runs one turn: bind a chat if needed, persist the user message,
// generate and persist the reply, deliver it, then hand the chat to the
// analysis queue.
func (s *Session) handleText(ctx context.Context, text string) {
	if !s.bound {
		created, err := s.store.CreateChat(ctx, s.userID)
		if err != nil {
			s.log.Error("chat creation failed", "error", err)
			s.sendError("failed to create a new chat")
			// The client must resend; the text is not retried here.
			return
		}
		s.chatID = created.ID
		s.bound = true
		s.context.Reset()
		s.send(chatCreatedFrame{Type: "chat_created", ChatID: s.chatID})
		s.log.Info("created chat", "chat_id", s.chatID)
	}

	if _, err := s.store.CreateMessage(ctx, s.chatID, chatmodel.SenderUser, text); err != nil {
		s.log.Error("user message persist failed", "chat_id", s.chatID, "error", err)
		if errors.Is(err, chatmodel.ErrChatNotFound) {
			s.sendError(fmt.Sprintf("chat %d no longer exists", s.chatID))
		} else {
			s.sendError("failed to save your message")
		}
		return
	}
	s.context.AppendUser(text)

	reply, err := s.completer.Complete(ctx, s.context.Messages())
	if err != nil {
		// The fallback is persisted and delivered, but kept out of the model
		// context so the failed turn leaves no trace in future prompts.
		s.log.Warn("completion failed, using fallback reply", "chat_id", s.chatID, "error", err)
		reply = FallbackReply
	} else {
		s.context.AppendAssistant(reply)
	}

	if _, err := s.store.CreateMessage(ctx, s.chatID, chatmodel.SenderBot, reply); err != nil {
		// The reply text is already in hand; losing durability of the bot
		// record is a degraded outcome, not a turn failure.
		s.log.Error("bot message persist failed", "chat_id", s.chatID, "error", err)
	}

	s.send(messageFrame{Type: "message", Sender: "bot", Text: reply, ChatID: s.chatID})

	taskID, err := s.dispatcher.DispatchAnalysis(ctx, s.chatID, s.userID)
	if err != nil {
		s.log.Error("analysis dispatch failed", "chat_id", s.chatID, "error", err)
		return
	}
	s.log.Debug("analysis dispatched", "chat_id", s.chatID, "task_id", taskID)
}

func (s *Session) send(v any) {
	if err := s.sender.Send(v); err != nil {
		s.log.Error("frame send failed", "error", err)
	}
}

func (s *Session) sendError(message string) {
	s.send(errorFrame{Type: "error", Message: message})
}

// parseChatID interprets the join target: absent or null means "start
// fresh"; a JSON number or numeric string is a chat id; anything else is
// malformed.
func parseChatID(raw json.RawMessage) (*int64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	unquoted := strings.Trim(trimmed, `"`)
	id, err := strconv.ParseInt(unquoted, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", trimmed, err)
	}
	return &id, nil
}
