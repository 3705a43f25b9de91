package file

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// ExecutionByID returns the execution with the given id.
func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.executionByIDLocked(id)
}

func (p *Persistence) executionByIDLocked(id string) (*models.Execution, error) {
	execution := &models.Execution{}
	if err := p.read("executions", id, execution); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// SaveExecution persists an execution with a revision check: the stored
// revision must match the caller's copy, otherwise ErrExecutionConflict.
func (p *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, err := p.executionByIDLocked(execution.ID)
	switch {
	case err == nil:
		if stored.Revision != execution.Revision {
			return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionConflict)
		}
	case errors.Is(err, persistence.ErrExecutionNotFound):
		// First save of a new execution.
	default:
		return err
	}

	execution.Revision++
	execution.UpdatedAt = time.Now().UTC()

	if err := p.write("executions", execution.ID, execution); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// OpenExecutionsByFlow returns the flow's executions still in an open state.
func (p *Persistence) OpenExecutionsByFlow(_ context.Context, flowID string) ([]*models.Execution, error) {
	return p.openExecutions(func(e *models.Execution) bool {
		return e.FlowID == flowID
	})
}

// OpenExecutionsBySender returns the sender's open executions for an account.
func (p *Persistence) OpenExecutionsBySender(_ context.Context, accountID, senderID string) ([]*models.Execution, error) {
	return p.openExecutions(func(e *models.Execution) bool {
		return e.AccountID == accountID && e.SenderID == senderID
	})
}

func (p *Persistence) openExecutions(match func(*models.Execution) bool) ([]*models.Execution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	executions := make([]*models.Execution, 0)

	err := p.readAll("executions", func(id string) error {
		execution := &models.Execution{}
		if err := p.read("executions", id, execution); err != nil {
			return err
		}

		if execution.IsOpen() && match(execution) {
			executions = append(executions, execution)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return executions, nil
}
