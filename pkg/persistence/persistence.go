// Package persistence provides the data storage abstraction for flows,
// executions and scheduled executions.
package persistence

import (
	"context"
	"time"

	"github.com/dmflow/dmflow/pkg/models"
)

// Persistence is the durable storage contract consumed by the engine. All
// records are structured documents keyed by opaque string ids.
type Persistence interface {
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	ActiveFlowsByAccount(ctx context.Context, accountID string) ([]*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error

	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	// SaveExecution persists an execution. The save fails with
	// ErrExecutionConflict when the stored revision no longer matches the
	// one the caller read; on success the revision is incremented.
	SaveExecution(ctx context.Context, execution *models.Execution) error
	OpenExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error)
	OpenExecutionsBySender(ctx context.Context, accountID, senderID string) ([]*models.Execution, error)

	SaveScheduledExecution(ctx context.Context, scheduled *models.ScheduledExecution) error
	ScheduledExecutionByID(ctx context.Context, id string) (*models.ScheduledExecution, error)
	// ClaimDueScheduledExecutions atomically moves up to limit pending
	// tickets with execute_at <= now into processing and returns them.
	ClaimDueScheduledExecutions(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledExecution, error)
	UpdateScheduledExecutionStatus(ctx context.Context, id string, status models.ScheduleStatus) error

	AccountByID(ctx context.Context, id string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error

	// CreateOrUpdateLead upserts a lead keyed by (account, sender).
	CreateOrUpdateLead(ctx context.Context, lead *models.Lead) (*models.Lead, error)
	LeadBySender(ctx context.Context, accountID, senderID string) (*models.Lead, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
