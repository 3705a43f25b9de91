package file

import (
	"context"
	"os"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// FlowByID returns the flow with the given id.
func (p *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	flow := &models.Flow{}
	if err := p.read("flows", id, flow); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	return flow, nil
}

// ActiveFlowsByAccount returns the account's flows with IsActive set.
func (p *Persistence) ActiveFlowsByAccount(_ context.Context, accountID string) ([]*models.Flow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	flows := make([]*models.Flow, 0)

	err := p.readAll("flows", func(id string) error {
		flow := &models.Flow{}
		if err := p.read("flows", id, flow); err != nil {
			return err
		}

		if flow.AccountID == accountID && flow.IsActive {
			flows = append(flows, flow)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return flows, nil
}

// SaveFlow persists a flow document.
func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.write("flows", flow.ID, flow); err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// DeleteFlow removes a flow document. Open executions are the engine's
// responsibility to fail before deletion.
func (p *Persistence) DeleteFlow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path("flows", id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
		}

		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}
