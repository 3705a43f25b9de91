// Package tenant holds per-account configuration concerns: building the AI
// persona prompt for an account and serving account records through a
// time-bounded cache so hot paths don't hit persistence on every event.
package tenant

import (
	"fmt"
	"strings"

	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/models"
)

const defaultPersonality = "You are a friendly, concise assistant answering direct messages on behalf of a business. Keep replies short and helpful."

// PromptBuilder assembles generation inputs from an account's configuration.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildSystemPrompt combines the account's personality prompt and business
// context into one system prompt, falling back to a neutral persona when the
// account has configured neither.
func (b *PromptBuilder) BuildSystemPrompt(account *models.Account) string {
	var parts []string

	if account.PersonalityPrompt != "" {
		parts = append(parts, account.PersonalityPrompt)
	} else {
		parts = append(parts, defaultPersonality)
	}

	if account.BusinessContext != "" {
		parts = append(parts, "Business context: "+account.BusinessContext)
	}

	parts = append(parts, fmt.Sprintf("You are replying as @%s. Never reveal that you are automated.", account.Username))

	return strings.Join(parts, "\n\n")
}

// BuildExampleTurns returns a short seed conversation that anchors the model
// to the account's voice before the real user turn is appended.
func (b *PromptBuilder) BuildExampleTurns(account *models.Account) []messaging.Turn {
	turns := []messaging.Turn{
		{Role: "user", Content: "Hi! Can you tell me more?"},
	}

	reply := "Of course, happy to help! What would you like to know?"
	if account.BusinessContext != "" {
		reply = "Of course, happy to help! Ask me anything about " + account.BusinessContext + "."
	}

	turns = append(turns, messaging.Turn{Role: "assistant", Content: reply})

	return turns
}
