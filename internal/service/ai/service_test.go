package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeModel struct {
	reply *schema.Message
	err   error
}

func (f *fakeModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return f.reply, f.err
}

func (f *fakeModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (f *fakeModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func TestCompleteReturnsContent(t *testing.T) {
	svc := NewServiceWithModel(&fakeModel{reply: schema.AssistantMessage("hi there", nil)}, time.Second)

	got, err := svc.Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hi there" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestCompleteMasksProviderErrors(t *testing.T) {
	svc := NewServiceWithModel(&fakeModel{err: errors.New("rate limited: key sk-123")}, time.Second)

	_, err := svc.Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	if err.Error() != ErrCompletionFailed.Error() {
		t.Fatalf("provider detail leaked: %v", err)
	}
}

func TestCompleteRejectsEmptyReply(t *testing.T) {
	svc := NewServiceWithModel(&fakeModel{reply: schema.AssistantMessage("   ", nil)}, time.Second)

	if _, err := svc.Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")}); !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
}
