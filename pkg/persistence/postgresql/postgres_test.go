package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
	"github.com/dmflow/dmflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"leads", "accounts", "scheduled_executions", "executions", "flows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("dmflow_test"),
			postgres.WithUsername("dmflow"),
			postgres.WithPassword("dmflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'flows')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "flows table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'scheduled_executions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "scheduled_executions table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_SaveAndRetrieveFlow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := &models.Flow{
		ID:        uuid.New().String(),
		AccountID: "acc-1",
		Name:      "Welcome DM",
		Nodes: []*models.FlowNode{
			{
				ID:   "t1",
				Type: models.NodeTypeTrigger,
				Data: models.NodeData{
					TriggerType: models.TriggerTypeDM,
					Keywords:    []string{"hello", "hi"},
				},
			},
			{
				ID:   "m1",
				Type: models.NodeTypeMessage,
				Data: models.NodeData{Text: "Welcome aboard!"},
			},
		},
		Edges: []*models.FlowEdge{
			{ID: "e1", Source: "t1", Target: "m1"},
		},
		IsActive: true,
	}

	err := p.SaveFlow(ctx, flow)
	require.NoError(t, err)
	assert.False(t, flow.CreatedAt.IsZero())
	assert.False(t, flow.UpdatedAt.IsZero())

	retrieved, err := p.FlowByID(ctx, flow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, flow.ID, retrieved.ID)
	assert.Equal(t, flow.Name, retrieved.Name)
	assert.True(t, retrieved.IsActive)
	require.Len(t, retrieved.Nodes, 2)
	assert.Equal(t, models.TriggerTypeDM, retrieved.Nodes[0].Data.TriggerType)
	assert.Equal(t, []string{"hello", "hi"}, retrieved.Nodes[0].Data.Keywords)
	require.Len(t, retrieved.Edges, 1)
	assert.Equal(t, "m1", retrieved.Edges[0].Target)

	_, err = p.FlowByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestNewPersistence_ActiveFlowsByAccount(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	active := &models.Flow{ID: uuid.NewString(), AccountID: "acc-1", Name: "Active", IsActive: true}
	inactive := &models.Flow{ID: uuid.NewString(), AccountID: "acc-1", Name: "Paused", IsActive: false}
	other := &models.Flow{ID: uuid.NewString(), AccountID: "acc-2", Name: "Other", IsActive: true}

	for _, flow := range []*models.Flow{active, inactive, other} {
		require.NoError(t, p.SaveFlow(ctx, flow))
	}

	flows, err := p.ActiveFlowsByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, active.ID, flows[0].ID)
}

func TestNewPersistence_ExecutionRevisionConflict(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	execution := &models.Execution{
		ID:            uuid.NewString(),
		FlowID:        "flow-1",
		AccountID:     "acc-1",
		SenderID:      "sender-1",
		CurrentNodeID: "t1",
		Status:        models.ExecutionStatusActive,
	}

	err := p.SaveExecution(ctx, execution)
	require.NoError(t, err)
	assert.Equal(t, 1, execution.Revision)

	stale, err := p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)

	execution.Context.Email = "fresh@example.com"
	require.NoError(t, p.SaveExecution(ctx, execution))
	assert.Equal(t, 2, execution.Revision)

	stale.Context.Email = "stale@example.com"
	err = p.SaveExecution(ctx, stale)
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionConflict(err))

	retrieved, err := p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh@example.com", retrieved.Context.Email)
	assert.Equal(t, 2, retrieved.Revision)
}

func TestNewPersistence_OpenExecutionsBySender(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	open := &models.Execution{
		ID: uuid.NewString(), FlowID: "flow-1", AccountID: "acc-1",
		SenderID: "sender-1", Status: models.ExecutionStatusWaiting,
	}
	closed := &models.Execution{
		ID: uuid.NewString(), FlowID: "flow-1", AccountID: "acc-1",
		SenderID: "sender-1", Status: models.ExecutionStatusCompleted,
	}
	otherSender := &models.Execution{
		ID: uuid.NewString(), FlowID: "flow-1", AccountID: "acc-1",
		SenderID: "sender-2", Status: models.ExecutionStatusActive,
	}

	for _, execution := range []*models.Execution{open, closed, otherSender} {
		require.NoError(t, p.SaveExecution(ctx, execution))
	}

	executions, err := p.OpenExecutionsBySender(ctx, "acc-1", "sender-1")
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, open.ID, executions[0].ID)
}

func TestNewPersistence_ClaimDueScheduledExecutions(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	now := time.Now().UTC()

	due := &models.ScheduledExecution{
		ID: "sched-due", ExecutionID: "exec-1", FlowID: "flow-1", AccountID: "acc-1",
		NodeID: "d1", ExecuteAt: now.Add(-time.Minute), Status: models.ScheduleStatusPending,
	}
	future := &models.ScheduledExecution{
		ID: "sched-future", ExecutionID: "exec-2", FlowID: "flow-1", AccountID: "acc-1",
		NodeID: "d1", ExecuteAt: now.Add(time.Hour), Status: models.ScheduleStatusPending,
	}

	require.NoError(t, p.SaveScheduledExecution(ctx, due))
	require.NoError(t, p.SaveScheduledExecution(ctx, future))

	claimed, err := p.ClaimDueScheduledExecutions(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "sched-due", claimed[0].ID)
	assert.Equal(t, models.ScheduleStatusProcessing, claimed[0].Status)

	// Claimed tickets must not be claimable again.
	again, err := p.ClaimDueScheduledExecutions(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	err = p.UpdateScheduledExecutionStatus(ctx, "sched-due", models.ScheduleStatusCompleted)
	require.NoError(t, err)

	ticket, err := p.ScheduledExecutionByID(ctx, "sched-due")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusCompleted, ticket.Status)
}

func TestNewPersistence_AccountAndLeadRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	account := &models.Account{
		ID:                "acc-1",
		PlatformUserID:    "platform-9",
		Username:          "glowskin",
		PersonalityPrompt: "Friendly and concise.",
		BusinessContext:   "Skincare brand.",
		AIEnabled:         true,
	}

	require.NoError(t, p.SaveAccount(ctx, account))

	retrieved, err := p.AccountByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "glowskin", retrieved.Username)
	assert.True(t, retrieved.AIEnabled)

	_, err = p.AccountByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrAccountNotFound)

	lead := &models.Lead{
		AccountID: "acc-1",
		SenderID:  "sender-1",
		Username:  "alice",
		Email:     "alice@example.com",
		Tags:      []string{"vip"},
		FlowID:    "flow-1",
	}

	saved, err := p.CreateOrUpdateLead(ctx, lead)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	stored, err := p.LeadBySender(ctx, "acc-1", "sender-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, []string{"vip"}, stored.Tags)

	_, err = p.LeadBySender(ctx, "acc-1", "nobody")
	assert.ErrorIs(t, err, persistence.ErrLeadNotFound)
}
