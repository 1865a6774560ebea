package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
)

const testUserID = int64(7)

type fakeStore struct {
	chats           map[int64]chatmodel.Chat
	messages        map[int64][]chatmodel.Message
	nextChatID      int64
	nextMessageID   int64
	createChatCalls int
	failCreateChat  bool
	failUserInsert  bool
	failBotInsert   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:         make(map[int64]chatmodel.Chat),
		messages:      make(map[int64][]chatmodel.Message),
		nextChatID:    1,
		nextMessageID: 1,
	}
}

func (f *fakeStore) addChat(userID int64) chatmodel.Chat {
	c := chatmodel.Chat{ID: f.nextChatID, UserID: userID, CreatedAt: time.Now()}
	f.nextChatID++
	f.chats[c.ID] = c
	return c
}

func (f *fakeStore) addMessage(chatID int64, sender chatmodel.SenderType, text string) chatmodel.Message {
	m := chatmodel.Message{
		ID:        f.nextMessageID,
		ChatID:    chatID,
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Unix(1700000000+f.nextMessageID, 0).UTC(),
	}
	f.nextMessageID++
	f.messages[chatID] = append(f.messages[chatID], m)
	return m
}

func (f *fakeStore) CreateChat(_ context.Context, userID int64) (chatmodel.Chat, error) {
	f.createChatCalls++
	if f.failCreateChat {
		return chatmodel.Chat{}, errors.New("db down")
	}
	return f.addChat(userID), nil
}

func (f *fakeStore) GetChat(_ context.Context, id int64) (chatmodel.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return chatmodel.Chat{}, chatmodel.ErrChatNotFound
	}
	return c, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, chatID int64, sender chatmodel.SenderType, text string) (chatmodel.Message, error) {
	if sender == chatmodel.SenderUser && f.failUserInsert {
		return chatmodel.Message{}, errors.New("insert failed")
	}
	if sender == chatmodel.SenderBot && f.failBotInsert {
		return chatmodel.Message{}, errors.New("insert failed")
	}
	if _, ok := f.chats[chatID]; !ok {
		return chatmodel.Message{}, chatmodel.ErrChatNotFound
	}
	return f.addMessage(chatID, sender, text), nil
}

func (f *fakeStore) ListMessages(_ context.Context, chatID int64, offset, limit int) ([]chatmodel.Message, error) {
	msgs := f.messages[chatID]
	if offset >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[offset:]
	if limit < len(msgs) {
		msgs = msgs[:limit]
	}
	out := make([]chatmodel.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type fakeCompleter struct {
	reply string
	err   error
	calls [][]*schema.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []*schema.Message) (string, error) {
	cp := make([]*schema.Message, len(messages))
	copy(cp, messages)
	f.calls = append(f.calls, cp)
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "generated reply", nil
	}
	return f.reply, nil
}

type dispatchCall struct {
	chatID int64
	userID int64
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (f *fakeDispatcher) DispatchAnalysis(_ context.Context, chatID, userID int64) (string, error) {
	f.calls = append(f.calls, dispatchCall{chatID: chatID, userID: userID})
	if f.err != nil {
		return "", f.err
	}
	return "task-1", nil
}

type fakeSender struct {
	frames []any
}

func (f *fakeSender) Send(v any) error {
	f.frames = append(f.frames, v)
	return nil
}

func (f *fakeSender) errorMessages() []string {
	var out []string
	for _, frame := range f.frames {
		if ef, ok := frame.(errorFrame); ok {
			out = append(out, ef.Message)
		}
	}
	return out
}

func newTestSession(store Store, completer Completer, dispatcher Dispatcher, sender Sender) *Session {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSession(testUserID, store, completer, dispatcher, sender,
		NewContext("test preamble", 0), 1000, logger)
}

func TestFirstTextCreatesChatAndCompletesTurn(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	dispatcher := &fakeDispatcher{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, dispatcher, sender)

	sess.HandleFrame(context.Background(), []byte("Hello"))

	if store.createChatCalls != 1 {
		t.Fatalf("expected 1 chat creation, got %d", store.createChatCalls)
	}
	if len(sender.frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %#v", len(sender.frames), sender.frames)
	}

	created, ok := sender.frames[0].(chatCreatedFrame)
	if !ok || created.Type != "chat_created" {
		t.Fatalf("expected chat_created first, got %#v", sender.frames[0])
	}

	reply, ok := sender.frames[1].(messageFrame)
	if !ok || reply.Type != "message" || reply.Sender != "bot" {
		t.Fatalf("expected bot message frame, got %#v", sender.frames[1])
	}
	if reply.ChatID != created.ChatID {
		t.Fatalf("reply chat id %d does not match created %d", reply.ChatID, created.ChatID)
	}

	persisted := store.messages[created.ChatID]
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(persisted))
	}
	if persisted[0].Sender != chatmodel.SenderUser || persisted[0].Text != "Hello" {
		t.Fatalf("unexpected user message: %#v", persisted[0])
	}
	if persisted[1].Sender != chatmodel.SenderBot || persisted[1].Text != "generated reply" {
		t.Fatalf("unexpected bot message: %#v", persisted[1])
	}

	if len(dispatcher.calls) != 1 {
		t.Fatalf("expected 1 analysis dispatch, got %d", len(dispatcher.calls))
	}
	if dispatcher.calls[0].chatID != created.ChatID || dispatcher.calls[0].userID != testUserID {
		t.Fatalf("unexpected dispatch target: %#v", dispatcher.calls[0])
	}
}

func TestSecondTextReusesBoundChat(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	sess := newTestSession(store, &fakeCompleter{}, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte("first"))
	sess.HandleFrame(context.Background(), []byte(`{"text":"second"}`))

	if store.createChatCalls != 1 {
		t.Fatalf("expected 1 chat creation across turns, got %d", store.createChatCalls)
	}
	if got := len(store.messages[1]); got != 4 {
		t.Fatalf("expected 4 persisted messages (2 per turn), got %d", got)
	}
}

func TestJoinNullStartsFresh(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte("talk in old chat"))
	sess.HandleFrame(context.Background(), []byte(`{"type":"join","chat_id":null}`))

	last := sender.frames[len(sender.frames)-1]
	if frame, ok := last.(newChatStartedFrame); !ok || frame.Type != "new_chat_started" {
		t.Fatalf("expected new_chat_started, got %#v", last)
	}

	sess.HandleFrame(context.Background(), []byte("fresh start"))

	if store.createChatCalls != 2 {
		t.Fatalf("expected a second chat after reset, got %d creations", store.createChatCalls)
	}

	// The provider must see only the preamble plus the single new user entry.
	input := completer.calls[len(completer.calls)-1]
	if len(input) != 2 {
		t.Fatalf("expected context of 2 entries after reset, got %d", len(input))
	}
	if input[0].Role != schema.System {
		t.Fatalf("entry 0 is not the preamble: %#v", input[0])
	}
	if input[1].Role != schema.User || input[1].Content != "fresh start" {
		t.Fatalf("unexpected user entry: %#v", input[1])
	}
}

func TestJoinReplaysHistoryInOrder(t *testing.T) {
	store := newFakeStore()
	c := store.addChat(testUserID)
	store.addMessage(c.ID, chatmodel.SenderUser, "hi")
	store.addMessage(c.ID, chatmodel.SenderBot, "hello there")
	store.addMessage(c.ID, chatmodel.SenderUser, "how are you")

	completer := &fakeCompleter{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte(fmt.Sprintf(`{"type":"join","chat_id":%d}`, c.ID)))

	if len(sender.frames) != 1 {
		t.Fatalf("expected only a history frame, got %#v", sender.frames)
	}
	history, ok := sender.frames[0].(historyFrame)
	if !ok || history.Type != "history" || history.ChatID != c.ID {
		t.Fatalf("unexpected history frame: %#v", sender.frames[0])
	}
	if len(history.Messages) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(history.Messages))
	}
	if history.Messages[0].Text != "hi" || history.Messages[2].Text != "how are you" {
		t.Fatalf("history out of order: %#v", history.Messages)
	}
	if history.Messages[1].Sender != string(chatmodel.SenderBot) {
		t.Fatalf("expected BOT sender on entry 1, got %q", history.Messages[1].Sender)
	}
	if _, err := time.Parse(time.RFC3339, history.Messages[0].Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", history.Messages[0].Timestamp)
	}

	// The rebuilt context feeds the next turn: preamble + 3 history entries
	// + 1 new user entry.
	sess.HandleFrame(context.Background(), []byte("still here"))
	input := completer.calls[0]
	if len(input) != 5 {
		t.Fatalf("expected provider context of 5 entries, got %d", len(input))
	}
	if input[1].Role != schema.User || input[2].Role != schema.Assistant {
		t.Fatalf("history roles not translated: %#v", input[1:3])
	}
}

func TestJoinForeignChatLooksLikeMissing(t *testing.T) {
	store := newFakeStore()
	foreign := store.addChat(testUserID + 1)

	senderForeign := &fakeSender{}
	sess := newTestSession(store, &fakeCompleter{}, &fakeDispatcher{}, senderForeign)
	sess.HandleFrame(context.Background(), []byte(fmt.Sprintf(`{"type":"join","chat_id":%d}`, foreign.ID)))

	senderMissing := &fakeSender{}
	sess2 := newTestSession(store, &fakeCompleter{}, &fakeDispatcher{}, senderMissing)
	missingID := foreign.ID + 100
	sess2.HandleFrame(context.Background(), []byte(fmt.Sprintf(`{"type":"join","chat_id":%d}`, missingID)))

	foreignErrs := senderForeign.errorMessages()
	missingErrs := senderMissing.errorMessages()
	if len(foreignErrs) != 1 || len(missingErrs) != 1 {
		t.Fatalf("expected one error each, got %v and %v", foreignErrs, missingErrs)
	}

	// Same shape for both so existence of other users' chats does not leak.
	want := fmt.Sprintf("chat %d not found or unavailable", foreign.ID)
	if foreignErrs[0] != want {
		t.Fatalf("unexpected foreign-chat error: %q", foreignErrs[0])
	}
	want = fmt.Sprintf("chat %d not found or unavailable", missingID)
	if missingErrs[0] != want {
		t.Fatalf("unexpected missing-chat error: %q", missingErrs[0])
	}
}

func TestJoinMalformedChatID(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	sess := newTestSession(store, &fakeCompleter{}, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte(`{"type":"join","chat_id":"abc"}`))

	errs := sender.errorMessages()
	if len(errs) != 1 || errs[0] != "invalid chat id format" {
		t.Fatalf("expected malformed-id error, got %v", errs)
	}
	if store.createChatCalls != 0 {
		t.Fatalf("join must not create chats")
	}
}

func TestProviderFailureUsesFallbackAndKeepsContextClean(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{err: errors.New("provider down")}
	dispatcher := &fakeDispatcher{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, dispatcher, sender)

	sess.HandleFrame(context.Background(), []byte("are you there"))

	reply, ok := sender.frames[len(sender.frames)-1].(messageFrame)
	if !ok || reply.Text != FallbackReply {
		t.Fatalf("expected fallback reply frame, got %#v", sender.frames)
	}

	persisted := store.messages[1]
	if len(persisted) != 2 || persisted[1].Sender != chatmodel.SenderBot || persisted[1].Text != FallbackReply {
		t.Fatalf("fallback must still be persisted as the BOT message: %#v", persisted)
	}
	if len(dispatcher.calls) != 1 {
		t.Fatalf("turn with fallback still dispatches analysis, got %d calls", len(dispatcher.calls))
	}

	// The next provider call must not contain the fallback text.
	completer.err = nil
	sess.HandleFrame(context.Background(), []byte("next turn"))
	input := completer.calls[len(completer.calls)-1]
	for _, entry := range input {
		if entry.Content == FallbackReply {
			t.Fatalf("fallback text leaked into model context: %#v", input)
		}
	}
	// preamble + user1 + user2: the failed turn contributed only its user entry.
	if len(input) != 3 {
		t.Fatalf("expected 3 context entries, got %d", len(input))
	}
}

func TestUserPersistFailureAbortsTurn(t *testing.T) {
	store := newFakeStore()
	store.failUserInsert = true
	completer := &fakeCompleter{}
	dispatcher := &fakeDispatcher{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, dispatcher, sender)

	sess.HandleFrame(context.Background(), []byte("doomed"))

	if len(completer.calls) != 0 {
		t.Fatalf("no completion may run after a failed user persist")
	}
	if len(dispatcher.calls) != 0 {
		t.Fatalf("no analysis may be dispatched after a failed user persist")
	}
	if got := len(store.messages[1]); got != 0 {
		t.Fatalf("expected zero persisted messages, got %d", got)
	}
	if errs := sender.errorMessages(); len(errs) != 1 {
		t.Fatalf("expected exactly one error frame, got %v", errs)
	}
}

func TestBotPersistFailureStillDeliversReply(t *testing.T) {
	store := newFakeStore()
	store.failBotInsert = true
	dispatcher := &fakeDispatcher{}
	sender := &fakeSender{}
	sess := newTestSession(store, &fakeCompleter{reply: "still yours"}, dispatcher, sender)

	sess.HandleFrame(context.Background(), []byte("hello"))

	reply, ok := sender.frames[len(sender.frames)-1].(messageFrame)
	if !ok || reply.Text != "still yours" {
		t.Fatalf("reply must reach the client despite bot persist failure: %#v", sender.frames)
	}
	if errs := sender.errorMessages(); len(errs) != 0 {
		t.Fatalf("bot persist failure is log-only, got error frames %v", errs)
	}
	if len(dispatcher.calls) != 1 {
		t.Fatalf("analysis still dispatched, got %d calls", len(dispatcher.calls))
	}
}

func TestChatCreationFailureIsNotRetriedInline(t *testing.T) {
	store := newFakeStore()
	store.failCreateChat = true
	completer := &fakeCompleter{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte("lost message"))

	if errs := sender.errorMessages(); len(errs) != 1 {
		t.Fatalf("expected one error frame, got %v", errs)
	}
	if len(completer.calls) != 0 {
		t.Fatalf("turn must abort when chat creation fails")
	}

	// A resent frame tries creation again.
	store.failCreateChat = false
	sess.HandleFrame(context.Background(), []byte("second attempt"))
	if store.createChatCalls != 2 {
		t.Fatalf("expected a fresh creation attempt on resend, got %d", store.createChatCalls)
	}
	if got := len(store.messages[1]); got != 2 {
		t.Fatalf("resent turn should persist normally, got %d messages", got)
	}
}

func TestEmptyAndUnknownFramesIgnored(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte("   "))
	sess.HandleFrame(context.Background(), []byte(`{}`))
	sess.HandleFrame(context.Background(), []byte(`{"type":"typing"}`))

	if len(sender.frames) != 0 {
		t.Fatalf("ignored frames must not produce output, got %#v", sender.frames)
	}
	if store.createChatCalls != 0 || len(completer.calls) != 0 {
		t.Fatalf("ignored frames must have no side effects")
	}
}

func TestQuotedStringFrameStoredUnquoted(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	sender := &fakeSender{}
	sess := newTestSession(store, completer, &fakeDispatcher{}, sender)

	sess.HandleFrame(context.Background(), []byte(`"hello there"`))

	persisted := store.messages[1]
	if len(persisted) != 2 {
		t.Fatalf("expected a full turn, got %d messages", len(persisted))
	}
	if persisted[0].Text != "hello there" {
		t.Fatalf("quotes leaked into the stored text: %q", persisted[0].Text)
	}

	// A quoted frame holding only whitespace carries no message.
	sess.HandleFrame(context.Background(), []byte(`"  "`))
	if got := len(store.messages[1]); got != 2 {
		t.Fatalf("whitespace-only frame must be ignored, got %d messages", got)
	}
}

func TestDispatchFailureNotSurfacedToClient(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	sess := newTestSession(store, &fakeCompleter{}, &fakeDispatcher{err: errors.New("queue down")}, sender)

	sess.HandleFrame(context.Background(), []byte("hello"))

	if errs := sender.errorMessages(); len(errs) != 0 {
		t.Fatalf("enqueue failure must stay out of the client path, got %v", errs)
	}
	if _, ok := sender.frames[len(sender.frames)-1].(messageFrame); !ok {
		t.Fatalf("reply still expected, got %#v", sender.frames)
	}
}

func TestClosedSessionProcessesNothing(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	sess := newTestSession(store, &fakeCompleter{}, &fakeDispatcher{}, sender)

	sess.Close()
	sess.HandleFrame(context.Background(), []byte("hello"))

	if len(sender.frames) != 0 || store.createChatCalls != 0 {
		t.Fatalf("closed session must perform no I/O")
	}
}

func TestParseChatID(t *testing.T) {
	cases := []struct {
		raw     string
		want    *int64
		wantErr bool
	}{
		{raw: ""},
		{raw: "null"},
		{raw: "42", want: ptr(int64(42))},
		{raw: `"42"`, want: ptr(int64(42))},
		{raw: `"abc"`, wantErr: true},
		{raw: "4.2", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseChatID([]byte(tc.raw))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseChatID(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseChatID(%q): unexpected error %v", tc.raw, err)
		}
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("parseChatID(%q): got %v want %v", tc.raw, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("parseChatID(%q): got %d want %d", tc.raw, *got, *tc.want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
