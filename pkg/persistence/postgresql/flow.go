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

const flowColumns = `
	id
  , account_id
  , name
  , nodes
  , edges
  , is_active
  , trigger_count
  , created_at
  , updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.Flow, error) {
	flow := &models.Flow{}

	var nodesJSON, edgesJSON []byte

	err := row.Scan(
		&flow.ID,
		&flow.AccountID,
		&flow.Name,
		&nodesJSON,
		&edgesJSON,
		&flow.IsActive,
		&flow.TriggerCount,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &flow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow edges: %w", err)
	}

	return flow, nil
}

// FlowByID returns the flow with the given id.
func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE id = $1`

	flow, err := scanFlow(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	return flow, nil
}

// ActiveFlowsByAccount returns the account's active flows, oldest first.
func (p *Persistence) ActiveFlowsByAccount(ctx context.Context, accountID string) ([]*models.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE account_id = $1 AND is_active ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// SaveFlow upserts a flow document.
func (p *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	nodesJSON, err := json.Marshal(flow.Nodes)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	edgesJSON, err := json.Marshal(flow.Edges)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	flow.UpdatedAt = time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = flow.UpdatedAt
	}

	query := `
		INSERT INTO flows (id, account_id, name, nodes, edges, is_active, trigger_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			account_id = EXCLUDED.account_id
		  , name = EXCLUDED.name
		  , nodes = EXCLUDED.nodes
		  , edges = EXCLUDED.edges
		  , is_active = EXCLUDED.is_active
		  , trigger_count = EXCLUDED.trigger_count
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		flow.ID, flow.AccountID, flow.Name, nodesJSON, edgesJSON,
		flow.IsActive, flow.TriggerCount, flow.CreatedAt, flow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// DeleteFlow removes a flow row.
func (p *Persistence) DeleteFlow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}
