package models

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	// ExecutionStatusPaused is reserved for manual pause and is not reachable
	// through node semantics.
	ExecutionStatusPaused ExecutionStatus = "paused"
)

// ExecutionContext is the mutable working memory of one traversal. It has no
// identity of its own; it is embedded in and owned by an Execution.
type ExecutionContext struct {
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Name            string         `json:"name,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
	LastUserMessage string         `json:"last_user_message,omitempty"`

	TriggerType TriggerType `json:"trigger_type,omitempty"`
	PostID      string      `json:"post_id,omitempty"`
	CommentText string      `json:"comment_text,omitempty"`
	StoryID     string      `json:"story_id,omitempty"`

	SelectedOption string `json:"selected_option,omitempty"`

	AwaitingEmail bool `json:"awaiting_email,omitempty"`
	AwaitingPhone bool `json:"awaiting_phone,omitempty"`
}

// AddTag appends a tag if not already present.
func (c *ExecutionContext) AddTag(tag string) {
	for _, existing := range c.Tags {
		if existing == tag {
			return
		}
	}

	c.Tags = append(c.Tags, tag)
}

// RemoveTag removes a tag if present.
func (c *ExecutionContext) RemoveTag(tag string) {
	tags := c.Tags[:0]

	for _, existing := range c.Tags {
		if existing != tag {
			tags = append(tags, existing)
		}
	}

	c.Tags = tags
}

// Execution is one sender's live or historical run through one flow.
type Execution struct {
	ID              string           `json:"id"`
	FlowID          string           `json:"flow_id"    validate:"required"`
	AccountID       string           `json:"account_id" validate:"required"`
	SenderID        string           `json:"sender_id"  validate:"required"`
	SenderUsername  string           `json:"sender_username"`
	CurrentNodeID   string           `json:"current_node_id"`
	PreviousNodeIDs []string         `json:"previous_node_ids,omitempty"`
	Status          ExecutionStatus  `json:"status"`
	Context         ExecutionContext `json:"context"`
	ScheduledAt     *time.Time       `json:"scheduled_at,omitempty"`
	ScheduledNodeID string           `json:"scheduled_node_id,omitempty"`
	LastError       string           `json:"last_error,omitempty"`

	// Revision is the optimistic concurrency token, incremented by the
	// persistence layer on every successful save.
	Revision int `json:"revision"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the execution can still be advanced.
func (e *Execution) IsOpen() bool {
	return e.Status == ExecutionStatusActive || e.Status == ExecutionStatusWaiting
}

// IsTerminal reports whether the execution reached a final state.
func (e *Execution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// AwaitingUserInput reports whether the execution is parked waiting for a
// user reply rather than for a delay ticket.
func (e *Execution) AwaitingUserInput() bool {
	return e.Status == ExecutionStatusWaiting && e.ScheduledNodeID == ""
}

// AdvanceTo records a node transition: the current node moves into history
// and the new node becomes current.
func (e *Execution) AdvanceTo(nodeID string) {
	if e.CurrentNodeID != "" {
		e.PreviousNodeIDs = append(e.PreviousNodeIDs, e.CurrentNodeID)
	}

	e.CurrentNodeID = nodeID
}

// Fail marks the execution terminally failed with the given reason.
func (e *Execution) Fail(reason string) {
	e.Status = ExecutionStatusFailed
	e.LastError = reason
}
