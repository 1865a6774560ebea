package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/GrSkiy/psycho-backend/internal/model/chat"
)

const analysisSystemPrompt = `You review a conversation between a user and a supportive companion bot.
Decide whether the exchange contains something worth preserving as a personal
diary record: a meaningful event, a strong emotion, a realization.

Respond with a single JSON object and nothing else, using exactly these keys:
{
  "should_create_diary": true or false,
  "diary_entry_title": "short title",
  "diary_entry_content": "a first-person summary of the important details",
  "main_topic": "one- or two-word category of the event",
  "emotions": ["list", "of", "emotions"],
  "importance_score": number from 1 to 10
}

Small talk, greetings and purely informational exchanges do not merit a diary
record: set should_create_diary to false and leave the other fields empty.`

// Analysis is the model's judgement over a conversation.
type Analysis struct {
	ShouldCreateDiary bool     `json:"should_create_diary"`
	DiaryEntryTitle   string   `json:"diary_entry_title"`
	DiaryEntryContent string   `json:"diary_entry_content"`
	MainTopic         string   `json:"main_topic"`
	Emotions          []string `json:"emotions"`
	ImportanceScore   float64  `json:"importance_score"`
}

// AnalyzeConversation asks the model whether the given messages merit a
// diary record and, if so, what it should contain.
func (s *Service) AnalyzeConversation(ctx context.Context, messages []chat.Message) (*Analysis, error) {
	prompt := []*schema.Message{schema.SystemMessage(analysisSystemPrompt)}
	for _, m := range messages {
		if m.Sender == chat.SenderUser {
			prompt = append(prompt, schema.UserMessage(m.Text))
		} else {
			prompt = append(prompt, schema.AssistantMessage(m.Text, nil))
		}
	}

	content, err := s.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysisOutput(content)
	if err != nil {
		return nil, fmt.Errorf("parse analysis output: %w", err)
	}
	return analysis, nil
}

// parseAnalysisOutput extracts the JSON object from the model reply, which
// may be wrapped in prose or code fences.
func parseAnalysisOutput(content string) (*Analysis, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	analysis := &Analysis{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}
