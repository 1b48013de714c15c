// Package llm provides the narrative-generation collaborator: a thin client
// over a hosted language model that turns numeric analysis into text/JSON.
package llm

import "context"

//go:generate mockgen -source=client.go -destination=client_mock.go -package=llm

// Role identifies the author of a message.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string
	Content string
}

// TokenUsage reports token consumption for a single completion.
type TokenUsage struct {
	PromptTokens     int32
	CompletionTokens int32
	TotalTokens      int32
}

// Completion is the raw model output. Content may contain markdown fencing
// around JSON; callers are expected to parse defensively.
type Completion struct {
	Content string
	Usage   TokenUsage
}

// Credentials selects the key and model for one call. Resolved per user and
// feature by the key manager.
type Credentials struct {
	APIKey string
	Model  string
}

// Client is the narrative-generation contract the engine depends on.
type Client interface {
	Complete(ctx context.Context, creds Credentials, messages []Message) (*Completion, error)
}
