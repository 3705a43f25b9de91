package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dmflow/dmflow/pkg/extract"
	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/otelhelper"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// HandleUserMessage feeds a follow-up inbound message into an in-progress
// execution: it records the text, satisfies any pending email/phone
// collection, and resumes traversal when the execution is waiting on user
// input. Delay-parked executions are not resumed here; only the sweep wakes
// those.
func (e *Engine) HandleUserMessage(ctx context.Context, execution *models.Execution, messageText string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.handle_user_message",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.FlowIDKey, execution.FlowID),
	)
	defer span.End()

	if execution.IsTerminal() {
		return nil
	}

	resume := execution.AwaitingUserInput()

	applyInboundMessage(execution, messageText)

	if resume {
		execution.Status = models.ExecutionStatusActive
	}

	if err := e.saveExecution(ctx, execution); err != nil {
		if !persistence.IsExecutionConflict(err) {
			otelhelper.SetError(span, err)

			return err
		}

		// A concurrent event advanced this execution first. Reload and
		// reapply once on the fresh revision.
		fresh, loadErr := e.persistence.ExecutionByID(ctx, execution.ID)
		if loadErr != nil {
			return fmt.Errorf("reload after conflict: %w", loadErr)
		}

		*execution = *fresh
		if execution.IsTerminal() {
			return nil
		}

		resume = execution.AwaitingUserInput()

		applyInboundMessage(execution, messageText)

		if resume {
			execution.Status = models.ExecutionStatusActive
		}

		if err := e.saveExecution(ctx, execution); err != nil {
			otelhelper.SetError(span, err)

			return err
		}
	}

	if !resume {
		return nil
	}

	f, err := e.persistence.FlowByID(ctx, execution.FlowID)
	if err != nil {
		return fmt.Errorf("load flow %s: %w", execution.FlowID, err)
	}

	account, err := e.accounts.Load(ctx, execution.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", execution.AccountID, err)
	}

	return e.runTraversal(ctx, account, f, execution)
}

// applyInboundMessage updates the execution context with the inbound text
// and runs the field extractors when a collection action is pending.
func applyInboundMessage(execution *models.Execution, messageText string) {
	c := &execution.Context

	c.LastUserMessage = messageText

	if c.AwaitingEmail {
		if email := extract.Email(messageText); email != "" {
			c.Email = email
			c.AwaitingEmail = false
		}
	}

	if c.AwaitingPhone {
		if phone := extract.Phone(messageText); phone != "" {
			c.Phone = phone
			c.AwaitingPhone = false
		}
	}
}
