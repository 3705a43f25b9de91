package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// SaveScheduledExecution upserts a wake-up ticket.
func (p *Persistence) SaveScheduledExecution(ctx context.Context, scheduled *models.ScheduledExecution) error {
	scheduled.UpdatedAt = time.Now().UTC()
	if scheduled.CreatedAt.IsZero() {
		scheduled.CreatedAt = scheduled.UpdatedAt
	}

	query := `
		INSERT INTO scheduled_executions (id, execution_id, flow_id, account_id, node_id, execute_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			execute_at = EXCLUDED.execute_at
		  , status = EXCLUDED.status
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		scheduled.ID, scheduled.ExecutionID, scheduled.FlowID, scheduled.AccountID,
		scheduled.NodeID, scheduled.ExecuteAt, scheduled.Status,
		scheduled.CreatedAt, scheduled.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save scheduled execution %s: %w", scheduled.ID, err)
	}

	return nil
}

// ScheduledExecutionByID returns the ticket with the given id.
func (p *Persistence) ScheduledExecutionByID(ctx context.Context, id string) (*models.ScheduledExecution, error) {
	query := `
		SELECT id, execution_id, flow_id, account_id, node_id, execute_at, status, created_at, updated_at
		FROM scheduled_executions
		WHERE id = $1
	`

	scheduled := &models.ScheduledExecution{}

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&scheduled.ID, &scheduled.ExecutionID, &scheduled.FlowID, &scheduled.AccountID,
		&scheduled.NodeID, &scheduled.ExecuteAt, &scheduled.Status,
		&scheduled.CreatedAt, &scheduled.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduledExecutionNotFound
		}

		return nil, fmt.Errorf("failed to query scheduled execution %s: %w", id, err)
	}

	return scheduled, nil
}

// ClaimDueScheduledExecutions atomically claims up to limit due pending
// tickets. The UPDATE ... RETURNING with FOR UPDATE SKIP LOCKED keeps
// concurrent sweeps from double-claiming a ticket.
func (p *Persistence) ClaimDueScheduledExecutions(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledExecution, error) {
	query := `
		UPDATE scheduled_executions SET
			status = 'processing'
		  , updated_at = NOW()
		WHERE id IN (
			SELECT id FROM scheduled_executions
			WHERE status = 'pending' AND execute_at <= $1
			ORDER BY execute_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, execution_id, flow_id, account_id, node_id, execute_at, status, created_at, updated_at
	`

	rows, err := p.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due scheduled executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	claimed := make([]*models.ScheduledExecution, 0)

	for rows.Next() {
		scheduled := &models.ScheduledExecution{}

		err := rows.Scan(
			&scheduled.ID, &scheduled.ExecutionID, &scheduled.FlowID, &scheduled.AccountID,
			&scheduled.NodeID, &scheduled.ExecuteAt, &scheduled.Status,
			&scheduled.CreatedAt, &scheduled.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled execution: %w", err)
		}

		claimed = append(claimed, scheduled)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled executions: %w", err)
	}

	return claimed, nil
}

// UpdateScheduledExecutionStatus transitions a ticket's status.
func (p *Persistence) UpdateScheduledExecutionStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE scheduled_executions SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled execution %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update scheduled execution %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrScheduledExecutionNotFound
	}

	return nil
}
