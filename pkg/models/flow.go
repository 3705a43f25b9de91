// Package models defines the core domain models for messaging automation flows.
package models

import "time"

// NodeType represents the kind of work a flow node performs.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeMessage   NodeType = "message"
	NodeTypeCondition NodeType = "condition"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeAction    NodeType = "action"
)

// TriggerType identifies the platform event a trigger node reacts to.
type TriggerType string

const (
	TriggerTypeDM           TriggerType = "dm"
	TriggerTypeComment      TriggerType = "comment"
	TriggerTypeKeyword      TriggerType = "keyword"
	TriggerTypeStoryReply   TriggerType = "story_reply"
	TriggerTypeStoryMention TriggerType = "story_mention"
	TriggerTypeNewFollower  TriggerType = "new_follower"
)

// RequiresKeywords reports whether trigger nodes of this type must declare
// at least one keyword to be matchable.
func (t TriggerType) RequiresKeywords() bool {
	return t == TriggerTypeComment || t == TriggerTypeKeyword
}

// ConditionType identifies the predicate a condition node evaluates.
type ConditionType string

const (
	ConditionHasEmail     ConditionType = "has_email"
	ConditionHasPhone     ConditionType = "has_phone"
	ConditionKeywordMatch ConditionType = "keyword_match"
	ConditionUserReplied  ConditionType = "user_replied"
	ConditionCustomField  ConditionType = "custom_field"
)

// ActionType identifies the side effect an action node performs.
type ActionType string

const (
	ActionCollectEmail ActionType = "collect_email"
	ActionCollectPhone ActionType = "collect_phone"
	ActionAddTag       ActionType = "add_tag"
	ActionRemoveTag    ActionType = "remove_tag"
	ActionCreateLead   ActionType = "create_lead"
	ActionNotify       ActionType = "notify"
)

// MessageType selects how a message node is dispatched.
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeQuickReply MessageType = "quick_reply"
)

// Position is the node's 2D layout coordinate, used only for presentation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the type-specific payload of a flow node. Fields outside
// the node's type are left at their zero value.
type NodeData struct {
	// Trigger nodes.
	TriggerType TriggerType `json:"trigger_type,omitempty"`
	Keywords    []string    `json:"keywords,omitempty"`
	PostIDs     []string    `json:"post_ids,omitempty"` // Comment triggers scoped to specific posts

	// Message nodes.
	Text              string      `json:"text,omitempty"`
	UseAI             bool        `json:"use_ai,omitempty"`
	AIPrompt          string      `json:"ai_prompt,omitempty"`
	MessageType       MessageType `json:"message_type,omitempty"`
	QuickReplyOptions []string    `json:"quick_reply_options,omitempty"`

	// Condition nodes.
	ConditionType ConditionType `json:"condition_type,omitempty"`
	FieldName     string        `json:"field_name,omitempty"` // For custom_field conditions

	// Delay nodes.
	DelayValue int       `json:"delay_value,omitempty"`
	DelayUnit  DelayUnit `json:"delay_unit,omitempty"`

	// Action nodes.
	ActionType    ActionType `json:"action_type,omitempty"`
	TagName       string     `json:"tag_name,omitempty"`
	NotifyMessage string     `json:"notify_message,omitempty"`
}

// FlowNode represents a typed unit of work in a flow graph.
type FlowNode struct {
	ID       string   `json:"id"   validate:"required"`
	Type     NodeType `json:"type" validate:"required,oneof=trigger message condition delay action"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

// FlowEdge connects two nodes. BranchHandle is only meaningful when the
// source node is a condition: "true" or "false".
type FlowEdge struct {
	ID           string `json:"id"     validate:"required"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	BranchHandle string `json:"branch_handle,omitempty"`
}

// Flow is an authored graph of nodes and edges defining a multi-step
// automation for one account.
type Flow struct {
	ID           string      `json:"id"`
	AccountID    string      `json:"account_id" validate:"required"`
	Name         string      `json:"name"       validate:"required,min=1"`
	Nodes        []*FlowNode `json:"nodes"`
	Edges        []*FlowEdge `json:"edges"`
	IsActive     bool        `json:"is_active"`
	TriggerCount int         `json:"trigger_count"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *FlowNode {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges whose source is the given node, in
// authored order.
func (f *Flow) OutgoingEdges(nodeID string) []*FlowEdge {
	edges := make([]*FlowEdge, 0)

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// TriggerNodes returns all trigger nodes in authored order.
func (f *Flow) TriggerNodes() []*FlowNode {
	nodes := make([]*FlowNode, 0)

	for _, node := range f.Nodes {
		if node.Type == NodeTypeTrigger {
			nodes = append(nodes, node)
		}
	}

	return nodes
}
