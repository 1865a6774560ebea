package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/GrSkiy/psycho-backend/internal/config"
)

// ErrCompletionFailed is the only failure the adapter exposes. Provider
// detail (transport, rate limits, malformed responses) stays in the logs and
// never reaches the client path.
var ErrCompletionFailed = errors.New("completion failed")

// Service wraps the provider chat model. One instance is built at process
// start and injected wherever completions are needed.
type Service struct {
	chatModel model.ChatModel
	timeout   time.Duration
}

// NewService builds the provider client from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &Service{chatModel: chatModel, timeout: cfg.Timeout}, nil
}

// NewServiceWithModel wires an existing chat model, mainly for tests.
func NewServiceWithModel(chatModel model.ChatModel, timeout time.Duration) *Service {
	return &Service{chatModel: chatModel, timeout: timeout}
}

// Complete runs one synchronous completion over the role-tagged context and
// returns the assistant text. The call is bounded by the configured timeout
// so a stuck provider cannot hold a turn open forever.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		slog.Error("completion provider call failed", "error", err)
		return "", ErrCompletionFailed
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		slog.Error("completion provider returned empty response")
		return "", ErrCompletionFailed
	}
	return response.Content, nil
}
