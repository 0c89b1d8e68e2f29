// Package llm defines the completion contract.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a completion request.
type Message struct {
	Role    string
	Content string
}

// Completer produces a reply for an ordered message history. The model
// identifier is hot-swappable; implementations must apply SetModel
// atomically with respect to concurrent Complete calls.
type Completer interface {
	Name() string
	Model() string
	SetModel(model string)
	Complete(ctx context.Context, messages []Message) (string, error)
}
