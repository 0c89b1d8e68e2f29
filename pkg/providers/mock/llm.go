package mock

import (
	"context"
	"sync"

	"github.com/kotoba-ai/kotoba/pkg/llm"
)

// Completer echoes a canned reply and records every request.
type Completer struct {
	mu       sync.Mutex
	model    string
	Reply    string
	FailWith error
	requests [][]llm.Message
}

func NewCompleter(model, reply string) *Completer {
	return &Completer{model: model, Reply: reply}
}

func (c *Completer) Name() string { return "mock_llm" }

func (c *Completer) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *Completer) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

func (c *Completer) Complete(_ context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return "", c.FailWith
	}
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	c.requests = append(c.requests, snapshot)
	return c.Reply, nil
}

// Requests returns the message histories seen so far.
func (c *Completer) Requests() [][]llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]llm.Message, len(c.requests))
	copy(out, c.requests)
	return out
}
