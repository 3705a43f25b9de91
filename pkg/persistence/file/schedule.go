package file

import (
	"context"
	"os"
	"time"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// SaveScheduledExecution persists a wake-up ticket.
func (p *Persistence) SaveScheduledExecution(_ context.Context, scheduled *models.ScheduledExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	scheduled.UpdatedAt = time.Now().UTC()

	return p.write("schedules", scheduled.ID, scheduled)
}

// ScheduledExecutionByID returns the ticket with the given id.
func (p *Persistence) ScheduledExecutionByID(_ context.Context, id string) (*models.ScheduledExecution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scheduled := &models.ScheduledExecution{}
	if err := p.read("schedules", id, scheduled); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrScheduledExecutionNotFound
		}

		return nil, err
	}

	return scheduled, nil
}

// ClaimDueScheduledExecutions moves up to limit due pending tickets into
// processing under the persistence mutex, so a ticket is claimed exactly
// once per sweep within a process.
func (p *Persistence) ClaimDueScheduledExecutions(_ context.Context, now time.Time, limit int) ([]*models.ScheduledExecution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	claimed := make([]*models.ScheduledExecution, 0)

	err := p.readAll("schedules", func(id string) error {
		if len(claimed) >= limit {
			return nil
		}

		scheduled := &models.ScheduledExecution{}
		if err := p.read("schedules", id, scheduled); err != nil {
			return err
		}

		if !scheduled.IsDue(now) {
			return nil
		}

		scheduled.Status = models.ScheduleStatusProcessing
		scheduled.UpdatedAt = time.Now().UTC()

		if err := p.write("schedules", id, scheduled); err != nil {
			return err
		}

		claimed = append(claimed, scheduled)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// UpdateScheduledExecutionStatus transitions a ticket's status.
func (p *Persistence) UpdateScheduledExecutionStatus(_ context.Context, id string, status models.ScheduleStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	scheduled := &models.ScheduledExecution{}
	if err := p.read("schedules", id, scheduled); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrScheduledExecutionNotFound
		}

		return err
	}

	scheduled.Status = status
	scheduled.UpdatedAt = time.Now().UTC()

	return p.write("schedules", id, scheduled)
}
