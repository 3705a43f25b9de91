// Package events defines the normalized platform events flowing between the
// ingestion surface and the worker.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmflow/dmflow/pkg/models"
)

type EventType string

// Topic carries every platform event.
const Topic = "dmflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// PlatformEventReceived is a normalized social-platform event (DM,
	// comment, story interaction, new follower) ready for trigger matching.
	PlatformEventReceived EventType = "platform.event.received"
)

var ErrInvalidPlatformEvent = errors.New("platform event missing account, trigger type or sender")

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// PlatformEvent is the wire form of one inbound social-platform event after
// webhook normalization, which happens upstream of this system.
type PlatformEvent struct {
	BaseEvent

	AccountID      string             `json:"account_id"`
	TriggerType    models.TriggerType `json:"trigger_type"`
	SenderID       string             `json:"sender_id"`
	SenderUsername string             `json:"sender_username,omitempty"`
	Text           string             `json:"text,omitempty"`
	PostID         string             `json:"post_id,omitempty"`
	CommentText    string             `json:"comment_text,omitempty"`
	StoryID        string             `json:"story_id,omitempty"`
}

func NewPlatformEvent(accountID string, triggerType models.TriggerType, senderID string) *PlatformEvent {
	return &PlatformEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      PlatformEventReceived,
			Timestamp: time.Now().UTC(),
		},
		AccountID:   accountID,
		TriggerType: triggerType,
		SenderID:    senderID,
	}
}

func (e PlatformEvent) GetType() EventType {
	return PlatformEventReceived
}

// Validate checks the event carries the identifiers routing depends on.
func (e PlatformEvent) Validate() error {
	if e.AccountID == "" || e.TriggerType == "" || e.SenderID == "" {
		return ErrInvalidPlatformEvent
	}

	return nil
}
