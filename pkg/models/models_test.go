package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    int
		unit     DelayUnit
		expected time.Duration
		wantErr  bool
	}{
		{name: "five minutes", value: 5, unit: DelayUnitMinutes, expected: 5 * time.Minute},
		{name: "two days", value: 2, unit: DelayUnitDays, expected: 48 * time.Hour},
		{name: "three hours", value: 3, unit: DelayUnitHours, expected: 3 * time.Hour},
		{name: "zero value", value: 0, unit: DelayUnitMinutes, wantErr: true},
		{name: "negative value", value: -1, unit: DelayUnitHours, wantErr: true},
		{name: "unknown unit", value: 5, unit: DelayUnit("weeks"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := DelayDuration(tt.value, tt.unit)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDelay)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDelayDurationMilliseconds(t *testing.T) {
	t.Parallel()

	fiveMinutes, err := DelayDuration(5, DelayUnitMinutes)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), fiveMinutes.Milliseconds())

	twoDays, err := DelayDuration(2, DelayUnitDays)
	require.NoError(t, err)
	assert.Equal(t, int64(172800000), twoDays.Milliseconds())
}

func TestFlowGraphLookups(t *testing.T) {
	t.Parallel()

	flow := &Flow{
		ID: "flow-1",
		Nodes: []*FlowNode{
			{ID: "t1", Type: NodeTypeTrigger},
			{ID: "m1", Type: NodeTypeMessage},
			{ID: "c1", Type: NodeTypeCondition},
		},
		Edges: []*FlowEdge{
			{ID: "e1", Source: "t1", Target: "m1"},
			{ID: "e2", Source: "m1", Target: "c1"},
			{ID: "e3", Source: "c1", Target: "m1", BranchHandle: "true"},
		},
	}

	assert.Equal(t, NodeTypeMessage, flow.NodeByID("m1").Type)
	assert.Nil(t, flow.NodeByID("missing"))

	edges := flow.OutgoingEdges("c1")
	require.Len(t, edges, 1)
	assert.Equal(t, "true", edges[0].BranchHandle)

	triggers := flow.TriggerNodes()
	require.Len(t, triggers, 1)
	assert.Equal(t, "t1", triggers[0].ID)
}

func TestExecutionAdvanceTo(t *testing.T) {
	t.Parallel()

	execution := &Execution{CurrentNodeID: "t1", Status: ExecutionStatusActive}

	execution.AdvanceTo("m1")
	execution.AdvanceTo("c1")

	assert.Equal(t, "c1", execution.CurrentNodeID)
	assert.Equal(t, []string{"t1", "m1"}, execution.PreviousNodeIDs)
}

func TestExecutionStatusHelpers(t *testing.T) {
	t.Parallel()

	execution := &Execution{Status: ExecutionStatusActive}
	assert.True(t, execution.IsOpen())
	assert.False(t, execution.IsTerminal())
	assert.False(t, execution.AwaitingUserInput())

	execution.Status = ExecutionStatusWaiting
	assert.True(t, execution.AwaitingUserInput())

	execution.ScheduledNodeID = "d1"
	assert.False(t, execution.AwaitingUserInput(), "a delay-parked execution is not awaiting user input")

	execution.Fail("boom")
	assert.True(t, execution.IsTerminal())
	assert.Equal(t, "boom", execution.LastError)
}

func TestExecutionContextTags(t *testing.T) {
	t.Parallel()

	ctx := &ExecutionContext{}

	ctx.AddTag("vip")
	ctx.AddTag("vip")
	ctx.AddTag("newsletter")
	assert.Equal(t, []string{"vip", "newsletter"}, ctx.Tags)

	ctx.RemoveTag("vip")
	assert.Equal(t, []string{"newsletter"}, ctx.Tags)

	ctx.RemoveTag("missing")
	assert.Equal(t, []string{"newsletter"}, ctx.Tags)
}

func TestScheduledExecutionIsDue(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	ticket := &ScheduledExecution{Status: ScheduleStatusPending, ExecuteAt: now.Add(5 * time.Minute)}

	assert.False(t, ticket.IsDue(now))
	assert.True(t, ticket.IsDue(now.Add(5*time.Minute)))
	assert.True(t, ticket.IsDue(now.Add(10*time.Minute)))

	ticket.Status = ScheduleStatusProcessing
	assert.False(t, ticket.IsDue(now.Add(10*time.Minute)))
}

func TestTriggerTypeRequiresKeywords(t *testing.T) {
	t.Parallel()

	assert.True(t, TriggerTypeComment.RequiresKeywords())
	assert.True(t, TriggerTypeKeyword.RequiresKeywords())
	assert.False(t, TriggerTypeStoryReply.RequiresKeywords())
	assert.False(t, TriggerTypeStoryMention.RequiresKeywords())
	assert.False(t, TriggerTypeNewFollower.RequiresKeywords())
	assert.False(t, TriggerTypeDM.RequiresKeywords())
}
