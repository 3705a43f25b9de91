package models

import (
	"errors"
	"fmt"
	"time"
)

// DelayUnit is the unit of a delay node's duration.
type DelayUnit string

const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// ErrInvalidDelay is returned for non-positive values or unknown units.
var ErrInvalidDelay = errors.New("invalid delay configuration")

// DelayDuration converts a delay node's (value, unit) pair into a duration.
func DelayDuration(value int, unit DelayUnit) (time.Duration, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: value %d must be positive", ErrInvalidDelay, value)
	}

	switch unit {
	case DelayUnitMinutes:
		return time.Duration(value) * time.Minute, nil
	case DelayUnitHours:
		return time.Duration(value) * time.Hour, nil
	case DelayUnitDays:
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidDelay, unit)
	}
}

// ScheduleStatus represents the lifecycle state of a scheduled execution.
type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusProcessing ScheduleStatus = "processing"
	ScheduleStatusCompleted  ScheduleStatus = "completed"
	ScheduleStatusFailed     ScheduleStatus = "failed"
)

// ScheduledExecution is a durable wake-up ticket created by a delay node.
// It is consumed exactly once by the sweep, which claims it (processing)
// before resuming the owning execution.
type ScheduledExecution struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id" validate:"required"`
	FlowID      string         `json:"flow_id"      validate:"required"`
	AccountID   string         `json:"account_id"   validate:"required"`
	NodeID      string         `json:"node_id"      validate:"required"`
	ExecuteAt   time.Time      `json:"execute_at"   validate:"required"`
	Status      ScheduleStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsDue reports whether the ticket should be picked up at the given time.
func (s *ScheduledExecution) IsDue(now time.Time) bool {
	return s.Status == ScheduleStatusPending && !s.ExecuteAt.After(now)
}
