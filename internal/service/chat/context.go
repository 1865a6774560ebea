package chat

import (
	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
)

// Context is the in-memory, role-tagged message list sent to the completion
// provider for one live connection. Entry 0 is always the persona preamble;
// it is never persisted and never sent to the client. The rest mirrors the
// bound chat's history, capped to the most recent turns.
type Context struct {
	preamble *schema.Message
	entries  []*schema.Message
	maxTurns int
}

// NewContext builds a context holding only the preamble. maxTurns <= 0
// disables the cap.
func NewContext(systemPrompt string, maxTurns int) *Context {
	return &Context{
		preamble: schema.SystemMessage(systemPrompt),
		maxTurns: maxTurns,
	}
}

// Reset drops everything but the preamble.
func (c *Context) Reset() {
	c.entries = c.entries[:0]
}

// Rebuild replaces the entries with the persisted history, translated to
// provider roles: USER becomes "user", BOT becomes "assistant".
func (c *Context) Rebuild(history []chatmodel.Message) {
	c.entries = make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m.Sender == chatmodel.SenderUser {
			c.entries = append(c.entries, schema.UserMessage(m.Text))
		} else {
			c.entries = append(c.entries, schema.AssistantMessage(m.Text, nil))
		}
	}
}

// AppendUser adds the latest user text.
func (c *Context) AppendUser(text string) {
	c.entries = append(c.entries, schema.UserMessage(text))
}

// AppendAssistant adds the latest reply. Callers skip this for fallback
// replies so a failed turn does not pollute future model context.
func (c *Context) AppendAssistant(text string) {
	c.entries = append(c.entries, schema.AssistantMessage(text, nil))
}

// Messages returns the sequence for the provider: the preamble followed by
// at most the last maxTurns*2 entries.
func (c *Context) Messages() []*schema.Message {
	entries := c.entries
	if c.maxTurns > 0 && len(entries) > c.maxTurns*2 {
		entries = entries[len(entries)-c.maxTurns*2:]
		// Turns with no assistant entry shift the window; never start it on
		// an orphaned assistant reply.
		for len(entries) > 0 && entries[0].Role != schema.User {
			entries = entries[1:]
		}
	}

	out := make([]*schema.Message, 0, len(entries)+1)
	out = append(out, c.preamble)
	out = append(out, entries...)
	return out
}
