package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestFlowRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)

	flow := &models.Flow{
		ID:        "flow-1",
		AccountID: "acct-1",
		Name:      "Welcome",
		IsActive:  true,
		Nodes: []*models.FlowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Data: models.NodeData{TriggerType: models.TriggerTypeDM}},
		},
	}

	require.NoError(t, p.SaveFlow(ctx, flow))

	loaded, err := p.FlowByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", loaded.Name)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, models.TriggerTypeDM, loaded.Nodes[0].Data.TriggerType)

	_, err = p.FlowByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestActiveFlowsByAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)

	require.NoError(t, p.SaveFlow(ctx, &models.Flow{ID: "f1", AccountID: "acct-1", Name: "a", IsActive: true}))
	require.NoError(t, p.SaveFlow(ctx, &models.Flow{ID: "f2", AccountID: "acct-1", Name: "b", IsActive: false}))
	require.NoError(t, p.SaveFlow(ctx, &models.Flow{ID: "f3", AccountID: "acct-2", Name: "c", IsActive: true}))

	flows, err := p.ActiveFlowsByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "f1", flows[0].ID)
}

func TestSaveExecutionRevisionCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)

	execution := &models.Execution{
		ID:        "exec-1",
		FlowID:    "flow-1",
		AccountID: "acct-1",
		SenderID:  "sender-1",
		Status:    models.ExecutionStatusActive,
	}

	require.NoError(t, p.SaveExecution(ctx, execution))
	assert.Equal(t, 1, execution.Revision)

	// A concurrent writer with the stale revision loses.
	stale := *execution
	stale.Revision = 0

	err := p.SaveExecution(ctx, &stale)
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionConflict(err))

	// The holder of the current revision can keep writing.
	execution.Status = models.ExecutionStatusCompleted
	require.NoError(t, p.SaveExecution(ctx, execution))
	assert.Equal(t, 2, execution.Revision)
}

func TestOpenExecutionQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)

	executions := []*models.Execution{
		{ID: "e1", FlowID: "f1", AccountID: "a1", SenderID: "s1", Status: models.ExecutionStatusActive},
		{ID: "e2", FlowID: "f1", AccountID: "a1", SenderID: "s2", Status: models.ExecutionStatusWaiting},
		{ID: "e3", FlowID: "f1", AccountID: "a1", SenderID: "s1", Status: models.ExecutionStatusCompleted},
		{ID: "e4", FlowID: "f2", AccountID: "a1", SenderID: "s1", Status: models.ExecutionStatusActive},
	}
	for _, e := range executions {
		require.NoError(t, p.SaveExecution(ctx, e))
	}

	byFlow, err := p.OpenExecutionsByFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, byFlow, 2)

	bySender, err := p.OpenExecutionsBySender(ctx, "a1", "s1")
	require.NoError(t, err)
	assert.Len(t, bySender, 2)
}

func TestClaimDueScheduledExecutions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)
	now := time.Now().UTC()

	tickets := []*models.ScheduledExecution{
		{ID: "s1", ExecutionID: "e1", FlowID: "f1", AccountID: "a1", NodeID: "d1", ExecuteAt: now.Add(-time.Minute), Status: models.ScheduleStatusPending},
		{ID: "s2", ExecutionID: "e2", FlowID: "f1", AccountID: "a1", NodeID: "d1", ExecuteAt: now.Add(time.Hour), Status: models.ScheduleStatusPending},
		{ID: "s3", ExecutionID: "e3", FlowID: "f1", AccountID: "a1", NodeID: "d1", ExecuteAt: now.Add(-time.Hour), Status: models.ScheduleStatusCompleted},
	}
	for _, s := range tickets {
		require.NoError(t, p.SaveScheduledExecution(ctx, s))
	}

	claimed, err := p.ClaimDueScheduledExecutions(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "s1", claimed[0].ID)
	assert.Equal(t, models.ScheduleStatusProcessing, claimed[0].Status)

	// A second sweep does not claim the same ticket again.
	claimed, err = p.ClaimDueScheduledExecutions(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	// The future ticket stays pending.
	future, err := p.ScheduledExecutionByID(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPending, future.Status)
}

func TestClaimLimitBoundsBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)
	now := time.Now().UTC()

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, p.SaveScheduledExecution(ctx, &models.ScheduledExecution{
			ID: id, ExecutionID: "e-" + id, FlowID: "f1", AccountID: "a1", NodeID: "d1",
			ExecuteAt: now.Add(-time.Minute), Status: models.ScheduleStatusPending,
		}))
	}

	claimed, err := p.ClaimDueScheduledExecutions(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestCreateOrUpdateLead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)

	lead, err := p.CreateOrUpdateLead(ctx, &models.Lead{
		AccountID: "acct-1",
		SenderID:  "sender-1",
		Email:     "a@b.com",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	firstID := lead.ID

	updated, err := p.CreateOrUpdateLead(ctx, &models.Lead{
		AccountID: "acct-1",
		SenderID:  "sender-1",
		Email:     "a@b.com",
		Phone:     "+15551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, updated.ID, "lead is keyed by (account, sender)")
	assert.Equal(t, "+15551234567", updated.Phone)

	stored, err := p.LeadBySender(ctx, "acct-1", "sender-1")
	require.NoError(t, err)
	assert.Equal(t, firstID, stored.ID)

	_, err = p.LeadBySender(ctx, "acct-1", "nobody")
	assert.ErrorIs(t, err, persistence.ErrLeadNotFound)
}

func TestAccountRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPersistence(t)

	require.NoError(t, p.SaveAccount(ctx, &models.Account{ID: "acct-1", PlatformUserID: "ig-1", Username: "brand"}))

	account, err := p.AccountByID(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "brand", account.Username)

	_, err = p.AccountByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrAccountNotFound)
}
