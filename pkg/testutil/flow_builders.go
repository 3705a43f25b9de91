// Package testutil provides test data builders shared by package tests.
package testutil

import (
	"github.com/google/uuid"

	"github.com/dmflow/dmflow/pkg/models"
)

// CreateTestFlow builds an active flow with the given nodes and edges.
func CreateTestFlow(accountID string, nodes []*models.FlowNode, edges []*models.FlowEdge) *models.Flow {
	return &models.Flow{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Name:      "Test Flow",
		Nodes:     nodes,
		Edges:     edges,
		IsActive:  true,
	}
}

// TriggerNode builds a trigger node of the given type.
func TriggerNode(id string, triggerType models.TriggerType, keywords ...string) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeTrigger,
		Data: models.NodeData{
			TriggerType: triggerType,
			Keywords:    keywords,
		},
	}
}

// MessageNode builds a plain text message node.
func MessageNode(id, text string) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeMessage,
		Data: models.NodeData{Text: text},
	}
}

// AIMessageNode builds a message node with AI generation enabled.
func AIMessageNode(id, prompt string) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeMessage,
		Data: models.NodeData{UseAI: true, AIPrompt: prompt},
	}
}

// QuickReplyNode builds a quick-reply message node.
func QuickReplyNode(id, text string, options ...string) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeMessage,
		Data: models.NodeData{
			Text:              text,
			MessageType:       models.MessageTypeQuickReply,
			QuickReplyOptions: options,
		},
	}
}

// ConditionNode builds a condition node of the given predicate type.
func ConditionNode(id string, conditionType models.ConditionType) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeCondition,
		Data: models.NodeData{ConditionType: conditionType},
	}
}

// DelayNode builds a delay node.
func DelayNode(id string, value int, unit models.DelayUnit) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeDelay,
		Data: models.NodeData{DelayValue: value, DelayUnit: unit},
	}
}

// ActionNode builds an action node of the given type.
func ActionNode(id string, actionType models.ActionType) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeAction,
		Data: models.NodeData{ActionType: actionType},
	}
}

// TagActionNode builds an add_tag or remove_tag action node.
func TagActionNode(id string, actionType models.ActionType, tag string) *models.FlowNode {
	return &models.FlowNode{
		ID:   id,
		Type: models.NodeTypeAction,
		Data: models.NodeData{ActionType: actionType, TagName: tag},
	}
}

// Edge connects source to target.
func Edge(source, target string) *models.FlowEdge {
	return &models.FlowEdge{
		ID:     source + "-" + target,
		Source: source,
		Target: target,
	}
}

// BranchEdge connects a condition node's branch to target.
func BranchEdge(source, target, handle string) *models.FlowEdge {
	return &models.FlowEdge{
		ID:           source + "-" + target + "-" + handle,
		Source:       source,
		Target:       target,
		BranchHandle: handle,
	}
}
