// Package convo holds the conversation context fed to the language-model
// stage: an ordered list of role/content messages owned by exactly one agent
// session.
package convo

import "sync"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is safe for concurrent use: the pipeline appends from stage
// goroutines while participant callbacks append kickoff instructions.
type Context struct {
	mu       sync.Mutex
	messages []Message
}

// NewContext seeds the context with one system message.
func NewContext(systemPrompt string) *Context {
	c := &Context{}
	if systemPrompt != "" {
		c.messages = append(c.messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return c
}

func (c *Context) Append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

// Snapshot returns a copy of the current messages.
func (c *Context) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
