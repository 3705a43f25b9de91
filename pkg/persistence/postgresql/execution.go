package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

const executionColumns = `
	id
  , flow_id
  , account_id
  , sender_id
  , sender_username
  , current_node_id
  , previous_node_ids
  , status
  , context
  , scheduled_at
  , scheduled_node_id
  , last_error
  , revision
  , created_at
  , updated_at
`

func scanExecution(row rowScanner) (*models.Execution, error) {
	execution := &models.Execution{}

	var (
		previousJSON, contextJSON []byte
		senderUsername, lastError sql.NullString
		scheduledNodeID           sql.NullString
		scheduledAt               sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.AccountID,
		&execution.SenderID,
		&senderUsername,
		&execution.CurrentNodeID,
		&previousJSON,
		&execution.Status,
		&contextJSON,
		&scheduledAt,
		&scheduledNodeID,
		&lastError,
		&execution.Revision,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.SenderUsername = senderUsername.String
	execution.ScheduledNodeID = scheduledNodeID.String
	execution.LastError = lastError.String

	if scheduledAt.Valid {
		execution.ScheduledAt = &scheduledAt.Time
	}

	if err := json.Unmarshal(previousJSON, &execution.PreviousNodeIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node history: %w", err)
	}

	if err := json.Unmarshal(contextJSON, &execution.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
	}

	return execution, nil
}

// ExecutionByID returns the execution with the given id.
func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := scanExecution(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// SaveExecution upserts an execution guarded by its revision: the UPDATE
// matches only when the stored revision equals the caller's copy, so a
// concurrent writer surfaces as ErrExecutionConflict instead of a lost
// update.
func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	previousJSON, err := json.Marshal(execution.PreviousNodeIDs)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	execution.UpdatedAt = time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = execution.UpdatedAt
	}

	if execution.Revision == 0 {
		query := `
			INSERT INTO executions (
				id, flow_id, account_id, sender_id, sender_username, current_node_id,
				previous_node_ids, status, context, scheduled_at, scheduled_node_id,
				last_error, revision, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)
		`

		_, err = p.db.ExecContext(ctx, query,
			execution.ID, execution.FlowID, execution.AccountID, execution.SenderID,
			nullString(execution.SenderUsername), execution.CurrentNodeID,
			previousJSON, execution.Status, contextJSON,
			nullTime(execution.ScheduledAt), nullString(execution.ScheduledNodeID),
			nullString(execution.LastError), execution.CreatedAt, execution.UpdatedAt,
		)
		if err != nil {
			return persistence.NewExecutionError("Save", execution.ID, err)
		}

		execution.Revision = 1

		return nil
	}

	query := `
		UPDATE executions SET
			current_node_id = $2
		  , previous_node_ids = $3
		  , status = $4
		  , context = $5
		  , scheduled_at = $6
		  , scheduled_node_id = $7
		  , last_error = $8
		  , revision = revision + 1
		  , updated_at = $9
		WHERE id = $1 AND revision = $10
	`

	result, err := p.db.ExecContext(ctx, query,
		execution.ID, execution.CurrentNodeID, previousJSON, execution.Status,
		contextJSON, nullTime(execution.ScheduledAt), nullString(execution.ScheduledNodeID),
		nullString(execution.LastError), execution.UpdatedAt, execution.Revision,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionConflict)
	}

	execution.Revision++

	return nil
}

// OpenExecutionsByFlow returns the flow's active and waiting executions.
func (p *Persistence) OpenExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE flow_id = $1 AND status IN ('active', 'waiting')
		ORDER BY created_at`

	return p.queryExecutions(ctx, query, flowID)
}

// OpenExecutionsBySender returns the sender's open executions for an account.
func (p *Persistence) OpenExecutionsBySender(ctx context.Context, accountID, senderID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE account_id = $1 AND sender_id = $2 AND status IN ('active', 'waiting')
		ORDER BY created_at`

	return p.queryExecutions(ctx, query, accountID, senderID)
}

func (p *Persistence) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}
