// Package messaging defines the outbound gateway contracts the engine speaks
// through: a Messenger dispatching direct messages on the social platform and
// a Generator producing AI reply text. Both are collaborators supplied at
// wiring time; the engine never talks to the platform or a model directly.
package messaging

import "context"

// Turn is one side of a conversation passed to the reply generator.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Messenger delivers messages to a platform user on behalf of an account.
// Implementations report non-delivery through the delivered return value,
// reserving the error for transport-level failures.
type Messenger interface {
	// SendDirectMessage sends plain text to recipientID as accountID.
	SendDirectMessage(ctx context.Context, accountID, recipientID, text string) (delivered bool, err error)
	// SendQuickReplyMessage sends text with tappable reply options.
	SendQuickReplyMessage(ctx context.Context, accountID, recipientID, text string, options []string) (delivered bool, err error)
}

// Generator produces reply text from a system prompt and conversation turns.
// Implementations must not fail on ordinary backend trouble; they return a
// safe fallback string instead.
type Generator interface {
	GenerateReply(ctx context.Context, systemPrompt string, turns []Turn, maxTokens int) string
}
