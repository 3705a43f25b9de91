package models

import "time"

// Account is the tenant owning flows and executions. Account management is a
// collaborator concern; the model lives here so persistence and the engine
// can share it.
type Account struct {
	ID                string    `json:"id"               validate:"required"`
	PlatformUserID    string    `json:"platform_user_id" validate:"required"`
	Username          string    `json:"username"`
	PersonalityPrompt string    `json:"personality_prompt,omitempty"`
	BusinessContext   string    `json:"business_context,omitempty"`
	AIEnabled         bool      `json:"ai_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Lead is a contact record assembled from an execution's context, keyed by
// (account, sender).
type Lead struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id" validate:"required"`
	SenderID  string    `json:"sender_id"  validate:"required"`
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	FlowID    string    `json:"flow_id,omitempty"` // Flow that produced this lead
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
