// Package engine implements the resumable flow interpreter: it matches
// inbound platform events against flow triggers, walks the flow graph per
// sender, parks executions at delay nodes and resumes them from durable
// tickets, and routes follow-up user messages into waiting executions.
//
// The engine is stateless: all collaborators are injected and every entry
// point receives the tenant account explicitly, so a single instance serves
// every account in the process.
package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmflow/dmflow/pkg/flow"
	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/otelhelper"
	"github.com/dmflow/dmflow/pkg/persistence"
	"github.com/dmflow/dmflow/pkg/tenant"
)

const defaultSweepBatchSize = 50

// FlowDeletedReason is recorded as lastError on executions force-failed by
// their flow's deletion.
const FlowDeletedReason = "flow deleted"

// Config wires the engine's collaborators. Persistence, Messenger, Generator
// and Accounts are required; the rest default sensibly.
type Config struct {
	Persistence persistence.Persistence
	Messenger   messaging.Messenger
	Generator   messaging.Generator
	Accounts    *tenant.Loader
	Prompts     *tenant.PromptBuilder
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Tracer      trace.Tracer
	// SweepBatchSize bounds how many due tickets one sweep invocation claims.
	SweepBatchSize int
}

// Engine drives flow executions. It holds no per-account or per-execution
// state between invocations.
type Engine struct {
	persistence    persistence.Persistence
	messenger      messaging.Messenger
	generator      messaging.Generator
	accounts       *tenant.Loader
	prompts        *tenant.PromptBuilder
	clock          clockwork.Clock
	logger         *slog.Logger
	tracer         trace.Tracer
	sweepBatchSize int
}

func New(cfg Config) *Engine {
	if cfg.Prompts == nil {
		cfg.Prompts = tenant.NewPromptBuilder()
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("engine")
	}

	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatchSize
	}

	return &Engine{
		persistence:    cfg.Persistence,
		messenger:      cfg.Messenger,
		generator:      cfg.Generator,
		accounts:       cfg.Accounts,
		prompts:        cfg.Prompts,
		clock:          cfg.Clock,
		logger:         cfg.Logger.With("module", "engine"),
		tracer:         cfg.Tracer,
		sweepBatchSize: cfg.SweepBatchSize,
	}
}

// TriggerOptions carries the event payload beyond its type and sender.
type TriggerOptions struct {
	MessageText string
	PostID      string
	CommentText string
	StoryID     string
}

// TriggerFlows matches the inbound event against every active flow of the
// account and starts one execution per matched flow, running each traversal
// to its first suspension point or terminal state. A traversal failure fails
// that execution only; remaining flows still run.
func (e *Engine) TriggerFlows(
	ctx context.Context,
	account *models.Account,
	triggerType models.TriggerType,
	senderID, senderUsername string,
	opts TriggerOptions,
) ([]*models.Execution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.trigger_flows",
		attribute.String(otelhelper.AccountIDKey, account.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(triggerType)),
		attribute.String(otelhelper.SenderIDKey, senderID),
	)
	defer span.End()

	flows, err := e.persistence.ActiveFlowsByAccount(ctx, account.ID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	input := flow.MatchInput{
		TriggerType: triggerType,
		Keywords:    eventKeywords(opts),
		PostID:      opts.PostID,
	}

	executions := make([]*models.Execution, 0)

	for _, f := range flows {
		matches := flow.FindMatchingTriggers(f, input)
		if len(matches) == 0 {
			continue
		}

		// Only the first matching trigger node starts an execution.
		execution := e.newExecution(f, matches[0], triggerType, senderID, senderUsername, opts)

		logger := e.logger.With("flow_id", f.ID, "execution_id", execution.ID, "sender_id", senderID)
		logger.InfoContext(ctx, "Trigger matched, starting execution", "trigger_node_id", matches[0].ID)

		if err := e.persistence.SaveExecution(ctx, execution); err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.FlowIDKey, f.ID))
			logger.ErrorContext(ctx, "Failed to save new execution", "error", err)

			continue
		}

		f.TriggerCount++
		if err := e.persistence.SaveFlow(ctx, f); err != nil {
			logger.WarnContext(ctx, "Failed to bump trigger counter", "error", err)
		}

		if err := e.runTraversal(ctx, account, f, execution); err != nil {
			logger.ErrorContext(ctx, "Traversal did not finish cleanly", "error", err)
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

func (e *Engine) newExecution(
	f *models.Flow,
	trigger *models.FlowNode,
	triggerType models.TriggerType,
	senderID, senderUsername string,
	opts TriggerOptions,
) *models.Execution {
	now := e.clock.Now()

	return &models.Execution{
		ID:             "exec-" + uuid.New().String(),
		FlowID:         f.ID,
		AccountID:      f.AccountID,
		SenderID:       senderID,
		SenderUsername: senderUsername,
		CurrentNodeID:  trigger.ID,
		Status:         models.ExecutionStatusActive,
		Context: models.ExecutionContext{
			TriggerType:     triggerType,
			PostID:          opts.PostID,
			CommentText:     opts.CommentText,
			StoryID:         opts.StoryID,
			LastUserMessage: opts.MessageText,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeleteFlow force-fails every open execution of the flow, then removes the
// flow itself.
func (e *Engine) DeleteFlow(ctx context.Context, flowID string) error {
	if err := e.FailOpenExecutions(ctx, flowID); err != nil {
		return err
	}

	return e.persistence.DeleteFlow(ctx, flowID)
}

// FailOpenExecutions transitions every active or waiting execution of the
// flow to failed with a fixed reason. Terminal executions are untouched.
func (e *Engine) FailOpenExecutions(ctx context.Context, flowID string) error {
	open, err := e.persistence.OpenExecutionsByFlow(ctx, flowID)
	if err != nil {
		return err
	}

	for _, execution := range open {
		execution.Fail(FlowDeletedReason)
		execution.ScheduledAt = nil
		execution.ScheduledNodeID = ""
		execution.UpdatedAt = e.clock.Now()

		if err := e.persistence.SaveExecution(ctx, execution); err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "Force-failed execution of deleted flow",
			"flow_id", flowID, "execution_id", execution.ID)
	}

	return nil
}

// eventKeywords tokenizes whichever text the event carries. Comment events
// match on the comment body, everything else on the message text.
func eventKeywords(opts TriggerOptions) []string {
	if opts.CommentText != "" {
		return flow.TokenizeMessage(opts.CommentText)
	}

	return flow.TokenizeMessage(opts.MessageText)
}
