package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmflow/dmflow/pkg/engine"
	"github.com/dmflow/dmflow/pkg/eventbus"
	"github.com/dmflow/dmflow/pkg/events"
	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
	"github.com/dmflow/dmflow/pkg/tenant"
)

// WorkerManager consumes platform events and routes each one either into an
// execution waiting on user input or into trigger matching for new executions.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	accounts    *tenant.Loader
	engine      *engine.Engine
	eventBus    eventbus.EventBus
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	accounts *tenant.Loader,
	messenger messaging.Messenger,
	generator messaging.Generator,
	logger *slog.Logger,
) *WorkerManager {
	eng := engine.New(engine.Config{
		Persistence: persistence,
		Messenger:   messenger,
		Generator:   generator,
		Accounts:    accounts,
		Logger:      logger,
	})

	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "dmflow-worker", "worker_id", id),
		persistence: persistence,
		accounts:    accounts,
		engine:      eng,
		eventBus:    eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.PlatformEventReceived, w.handlePlatformEvent)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handlePlatformEvent(ctx context.Context, event any) error {
	platformEvent, ok := event.(*events.PlatformEvent)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for PlatformEvent")

		return nil
	}

	if err := platformEvent.Validate(); err != nil {
		w.logger.WarnContext(ctx, "Dropping invalid platform event", "error", err, "event_id", platformEvent.ID)

		return nil
	}

	logger := w.logger.With(
		"account_id", platformEvent.AccountID,
		"trigger_type", platformEvent.TriggerType,
		"sender_id", platformEvent.SenderID,
		"event_id", platformEvent.ID,
	)
	logger.InfoContext(ctx, "Processing platform event")

	account, err := w.accounts.Load(ctx, platformEvent.AccountID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load account", "error", err)

		return err
	}

	if w.isTextMessage(platformEvent.TriggerType) {
		routed, err := w.routeToWaitingExecution(ctx, platformEvent)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to route message into waiting execution", "error", err)

			return err
		}

		if routed {
			logger.InfoContext(ctx, "Message resumed a waiting execution")

			return nil
		}
	}

	executions, err := w.engine.TriggerFlows(
		ctx,
		account,
		platformEvent.TriggerType,
		platformEvent.SenderID,
		platformEvent.SenderUsername,
		engine.TriggerOptions{
			MessageText: platformEvent.Text,
			PostID:      platformEvent.PostID,
			CommentText: platformEvent.CommentText,
			StoryID:     platformEvent.StoryID,
		},
	)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to trigger flows", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Platform event processed", "executions_started", len(executions))

	return nil
}

// isTextMessage reports whether the event carries free text the sender typed,
// which may answer a prompt from an execution waiting on input.
func (w *WorkerManager) isTextMessage(triggerType models.TriggerType) bool {
	return triggerType == models.TriggerTypeDM || triggerType == models.TriggerTypeKeyword
}

// routeToWaitingExecution delivers the message text to the sender's oldest
// execution awaiting user input, if any. It reports whether one was found.
func (w *WorkerManager) routeToWaitingExecution(ctx context.Context, platformEvent *events.PlatformEvent) (bool, error) {
	open, err := w.persistence.OpenExecutionsBySender(ctx, platformEvent.AccountID, platformEvent.SenderID)
	if err != nil {
		return false, err
	}

	for _, execution := range open {
		if !execution.AwaitingUserInput() {
			continue
		}

		err := w.engine.HandleUserMessage(ctx, execution, platformEvent.Text)
		if err != nil {
			return true, err
		}

		return true, nil
	}

	return false, nil
}
