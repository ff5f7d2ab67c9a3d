package agent

import (
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Conversation is the append-only message history of one agent.
type Conversation struct {
	mu   sync.Mutex
	msgs []openai.ChatCompletionMessage
}

func NewConversation(initial ...openai.ChatCompletionMessage) *Conversation {
	c := &Conversation{}
	c.Append(initial...)
	return c
}

func (c *Conversation) Append(msgs ...openai.ChatCompletionMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []openai.ChatCompletionMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]openai.ChatCompletionMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}
