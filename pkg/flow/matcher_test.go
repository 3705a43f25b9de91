package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmflow/dmflow/pkg/models"
)

func matcherFlow() *models.Flow {
	return &models.Flow{
		ID: "flow-1",
		Nodes: []*models.FlowNode{
			{
				ID:   "t-comment",
				Type: models.NodeTypeTrigger,
				Data: models.NodeData{
					TriggerType: models.TriggerTypeComment,
					Keywords:    []string{"free"},
					PostIDs:     []string{"post-1", "post-2"},
				},
			},
			{
				ID:   "t-keyword",
				Type: models.NodeTypeTrigger,
				Data: models.NodeData{
					TriggerType: models.TriggerTypeKeyword,
					Keywords:    []string{"freebie"},
				},
			},
			{
				ID:   "t-story",
				Type: models.NodeTypeTrigger,
				Data: models.NodeData{TriggerType: models.TriggerTypeStoryReply},
			},
			{ID: "m1", Type: models.NodeTypeMessage, Data: models.NodeData{Text: "hi"}},
		},
	}
}

func TestFindMatchingTriggersByType(t *testing.T) {
	t.Parallel()

	matches := FindMatchingTriggers(matcherFlow(), MatchInput{
		TriggerType: models.TriggerTypeStoryReply,
	})

	require.Len(t, matches, 1)
	assert.Equal(t, "t-story", matches[0].ID)
}

func TestKeywordMatchingIsBidirectionalSubstring(t *testing.T) {
	t.Parallel()

	// Declared "free" matches inbound "FREEBIE".
	matches := FindMatchingTriggers(matcherFlow(), MatchInput{
		TriggerType: models.TriggerTypeComment,
		Keywords:    []string{"FREEBIE"},
		PostID:      "post-1",
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "t-comment", matches[0].ID)

	// Declared "freebie" matches inbound "free".
	matches = FindMatchingTriggers(matcherFlow(), MatchInput{
		TriggerType: models.TriggerTypeKeyword,
		Keywords:    []string{"free"},
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "t-keyword", matches[0].ID)
}

func TestKeywordMismatchRejects(t *testing.T) {
	t.Parallel()

	matches := FindMatchingTriggers(matcherFlow(), MatchInput{
		TriggerType: models.TriggerTypeKeyword,
		Keywords:    []string{"discount"},
	})

	assert.Empty(t, matches)
}

func TestCommentTriggerPostScoping(t *testing.T) {
	t.Parallel()

	// Event from a post outside the allow-list is rejected even when the
	// keyword matches.
	matches := FindMatchingTriggers(matcherFlow(), MatchInput{
		TriggerType: models.TriggerTypeComment,
		Keywords:    []string{"free"},
		PostID:      "post-99",
	})

	assert.Empty(t, matches)
}

func TestStoryTriggersMatchUnconditionally(t *testing.T) {
	t.Parallel()

	f := &models.Flow{
		Nodes: []*models.FlowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Data: models.NodeData{TriggerType: models.TriggerTypeNewFollower}},
		},
	}

	matches := FindMatchingTriggers(f, MatchInput{TriggerType: models.TriggerTypeNewFollower})
	assert.Len(t, matches, 1)
}

func TestTokenizeMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"I", "want", "the", "freebie"}, TokenizeMessage("I want the freebie"))
	assert.Empty(t, TokenizeMessage("   "))
}
