// Package flow provides structural validation and trigger matching for flow
// graphs.
package flow

import (
	"fmt"

	"github.com/dmflow/dmflow/pkg/models"
)

// ValidationResult collects every structural problem found in a flow so the
// caller can report all of them at once.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate checks a candidate flow definition. All violations are
// accumulated, never short-circuited.
func Validate(f *models.Flow) ValidationResult {
	errs := make([]string, 0)

	nodeIDs := make(map[string]bool, len(f.Nodes))
	hasTrigger := false
	hasActionable := false

	for _, node := range f.Nodes {
		nodeIDs[node.ID] = true

		switch node.Type {
		case models.NodeTypeTrigger:
			hasTrigger = true

			errs = append(errs, validateTriggerNode(node)...)
		case models.NodeTypeMessage:
			hasActionable = true

			if node.Data.Text == "" && !node.Data.UseAI {
				errs = append(errs, fmt.Sprintf("message node %s has neither text nor AI generation enabled", node.ID))
			}
		case models.NodeTypeAction:
			hasActionable = true
		case models.NodeTypeDelay:
			if node.Data.DelayValue <= 0 {
				errs = append(errs, fmt.Sprintf("delay node %s must have a positive duration", node.ID))
			}
		case models.NodeTypeCondition:
			if node.Data.ConditionType == "" {
				errs = append(errs, fmt.Sprintf("condition node %s has no condition type", node.ID))
			}
		}
	}

	if !hasTrigger {
		errs = append(errs, "flow must have at least one trigger node")
	}

	if !hasActionable {
		errs = append(errs, "flow must have at least one message or action node")
	}

	for _, edge := range f.Edges {
		if !nodeIDs[edge.Source] {
			errs = append(errs, fmt.Sprintf("edge %s references unknown source node %s", edge.ID, edge.Source))
		}

		if !nodeIDs[edge.Target] {
			errs = append(errs, fmt.Sprintf("edge %s references unknown target node %s", edge.ID, edge.Target))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateTriggerNode(node *models.FlowNode) []string {
	errs := make([]string, 0)

	if node.Data.TriggerType == "" {
		errs = append(errs, fmt.Sprintf("trigger node %s has no trigger type", node.ID))

		return errs
	}

	if node.Data.TriggerType.RequiresKeywords() && len(node.Data.Keywords) == 0 {
		errs = append(errs, fmt.Sprintf("trigger node %s requires at least one keyword", node.ID))
	}

	return errs
}
