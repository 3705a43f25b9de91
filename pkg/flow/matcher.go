package flow

import (
	"slices"
	"strings"

	"github.com/dmflow/dmflow/pkg/models"
)

// MatchInput describes the inbound event being matched against a flow's
// trigger nodes.
type MatchInput struct {
	TriggerType models.TriggerType
	Keywords    []string // Tokens extracted from the inbound text, if any
	PostID      string   // Post the comment was left on, if any
}

// FindMatchingTriggers returns the trigger nodes of the flow satisfied by the
// inbound event, in authored order. Callers conventionally use only the
// first match.
func FindMatchingTriggers(f *models.Flow, input MatchInput) []*models.FlowNode {
	matches := make([]*models.FlowNode, 0)

	for _, node := range f.TriggerNodes() {
		if node.Data.TriggerType != input.TriggerType {
			continue
		}

		// Comment triggers scoped to specific posts reject events from
		// other posts.
		if input.TriggerType == models.TriggerTypeComment && len(node.Data.PostIDs) > 0 {
			if !slices.Contains(node.Data.PostIDs, input.PostID) {
				continue
			}
		}

		if len(node.Data.Keywords) > 0 && node.Data.TriggerType.RequiresKeywords() {
			if !KeywordsMatch(node.Data.Keywords, input.Keywords) {
				continue
			}
		}

		matches = append(matches, node)
	}

	return matches
}

// KeywordsMatch reports whether any inbound keyword matches any declared
// keyword. Matching is case-insensitive substring in either direction, so a
// declared "free" catches an inbound "FREEBIE" and a declared "freebie"
// catches an inbound "free".
func KeywordsMatch(declared, inbound []string) bool {
	for _, d := range declared {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}

		for _, in := range inbound {
			in = strings.ToLower(strings.TrimSpace(in))
			if in == "" {
				continue
			}

			if strings.Contains(in, d) || strings.Contains(d, in) {
				return true
			}
		}
	}

	return false
}

// TokenizeMessage splits free text into keyword tokens for matching.
func TokenizeMessage(text string) []string {
	return strings.Fields(text)
}
