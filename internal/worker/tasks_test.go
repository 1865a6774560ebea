package worker

import "testing"

func TestAnalyzeChatTaskRoundTrip(t *testing.T) {
	task, err := NewAnalyzeChatTask(42, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TypeAnalyzeChat {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	payload, err := ParseAnalyzeChatPayload(task.Payload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ChatID != 42 || payload.UserID != 7 {
		t.Fatalf("payload did not round-trip: %#v", payload)
	}
}

func TestParseAnalyzeChatPayloadRejectsJunk(t *testing.T) {
	cases := []string{
		"not json",
		`{}`,
		`{"chat_id": 1}`,
		`{"user_id": 1}`,
	}
	for _, raw := range cases {
		if _, err := ParseAnalyzeChatPayload([]byte(raw)); err == nil {
			t.Fatalf("expected error for payload %q", raw)
		}
	}
}
