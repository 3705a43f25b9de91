package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/otelhelper"
)

// ProcessScheduledExecutions claims a bounded batch of due wake-up tickets
// and resumes each owning execution past its delay node. Failures are
// isolated per ticket: a bad ticket is marked failed and the batch moves on.
// Returns the number of tickets successfully completed.
func (e *Engine) ProcessScheduledExecutions(ctx context.Context) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.sweep")
	defer span.End()

	tickets, err := e.persistence.ClaimDueScheduledExecutions(ctx, e.clock.Now(), e.sweepBatchSize)
	if err != nil {
		otelhelper.SetError(span, err)

		return 0, err
	}

	processed := 0

	for _, ticket := range tickets {
		logger := e.logger.With("schedule_id", ticket.ID, "execution_id", ticket.ExecutionID)

		if err := e.resumeTicket(ctx, ticket); err != nil {
			logger.ErrorContext(ctx, "Failed to resume scheduled execution", "error", err)
			otelhelper.SetError(span, err, attribute.String(otelhelper.ScheduleIDKey, ticket.ID))

			if err := e.persistence.UpdateScheduledExecutionStatus(ctx, ticket.ID, models.ScheduleStatusFailed); err != nil {
				logger.ErrorContext(ctx, "Failed to mark ticket failed", "error", err)
			}

			continue
		}

		if err := e.persistence.UpdateScheduledExecutionStatus(ctx, ticket.ID, models.ScheduleStatusCompleted); err != nil {
			logger.ErrorContext(ctx, "Failed to mark ticket completed", "error", err)

			continue
		}

		logger.InfoContext(ctx, "Resumed scheduled execution")

		processed++
	}

	return processed, nil
}

// resumeTicket reloads the ticket's execution, flow and account, flips the
// execution back to active and continues traversal past the delay node.
func (e *Engine) resumeTicket(ctx context.Context, ticket *models.ScheduledExecution) error {
	execution, err := e.persistence.ExecutionByID(ctx, ticket.ExecutionID)
	if err != nil {
		return fmt.Errorf("load execution %s: %w", ticket.ExecutionID, err)
	}

	if execution.IsTerminal() {
		// Nothing to resume; the execution ended while the ticket was
		// pending (e.g. its flow was deleted).
		return nil
	}

	f, err := e.persistence.FlowByID(ctx, ticket.FlowID)
	if err != nil {
		return fmt.Errorf("load flow %s: %w", ticket.FlowID, err)
	}

	account, err := e.accounts.Load(ctx, ticket.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", ticket.AccountID, err)
	}

	execution.Status = models.ExecutionStatusActive
	execution.ScheduledAt = nil
	execution.ScheduledNodeID = ""

	if err := e.saveExecution(ctx, execution); err != nil {
		return fmt.Errorf("reactivate execution %s: %w", execution.ID, err)
	}

	return e.runTraversal(ctx, account, f, execution)
}
