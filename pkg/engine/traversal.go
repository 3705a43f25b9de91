package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dmflow/dmflow/pkg/flow"
	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/otelhelper"
)

type nodeOutcome int

const (
	// outcomeContinue lets the traversal move on to the node's outgoing
	// edges.
	outcomeContinue nodeOutcome = iota
	// outcomeSuspend exits the traversal; the execution was parked by the
	// node (delay ticket or awaiting user input).
	outcomeSuspend
)

const generateMaxTokens = 150

// maxTraversalSteps bounds one traversal so a flow authored with a cycle
// cannot spin forever.
const maxTraversalSteps = 256

// runTraversal walks the flow graph from the execution's current node until
// no edges remain (completed), a node suspends, or a node errors (failed).
// The execution document is persisted after every node so a crash loses no
// committed progress.
func (e *Engine) runTraversal(ctx context.Context, account *models.Account, f *models.Flow, execution *models.Execution) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.traversal",
		attribute.String(otelhelper.FlowIDKey, f.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	for steps := 0; ; steps++ {
		if steps >= maxTraversalSteps {
			return e.failExecution(ctx, execution, fmt.Errorf("traversal exceeded %d steps in flow %s", maxTraversalSteps, f.ID))
		}

		edges, err := e.nextEdges(f, execution)
		if err != nil {
			return e.failExecution(ctx, execution, err)
		}

		if len(edges) == 0 {
			execution.Status = models.ExecutionStatusCompleted
			execution.ScheduledAt = nil
			execution.ScheduledNodeID = ""

			if err := e.saveExecution(ctx, execution); err != nil {
				return err
			}

			e.logger.InfoContext(ctx, "Execution completed",
				"execution_id", execution.ID, "flow_id", f.ID)

			return nil
		}

		// All targets of the selected edges run in authored order; the
		// traversal then continues from the last of them.
		for _, edge := range edges {
			node := f.NodeByID(edge.Target)
			if node == nil {
				return e.failExecution(ctx, execution, fmt.Errorf("edge %s targets unknown node %s", edge.ID, edge.Target))
			}

			execution.AdvanceTo(node.ID)

			outcome, err := e.executeNode(ctx, account, f, execution, node)
			if err != nil {
				otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))

				return e.failExecution(ctx, execution, err)
			}

			if err := e.saveExecution(ctx, execution); err != nil {
				return err
			}

			if outcome == outcomeSuspend {
				return nil
			}
		}
	}
}

// nextEdges computes the outgoing edge set of the current node. Condition
// nodes evaluate here: only edges whose branch handle matches the predicate
// result are followed.
func (e *Engine) nextEdges(f *models.Flow, execution *models.Execution) ([]*models.FlowEdge, error) {
	current := f.NodeByID(execution.CurrentNodeID)
	if current == nil {
		return nil, fmt.Errorf("current node %s not found in flow %s", execution.CurrentNodeID, f.ID)
	}

	edges := f.OutgoingEdges(current.ID)

	if current.Type == models.NodeTypeCondition {
		branch := "false"
		if evaluateCondition(current, &execution.Context) {
			branch = "true"
		}

		selected := make([]*models.FlowEdge, 0, len(edges))

		for _, edge := range edges {
			if edge.BranchHandle == branch {
				selected = append(selected, edge)
			}
		}

		edges = selected
	}

	return edges, nil
}

func (e *Engine) executeNode(
	ctx context.Context,
	account *models.Account,
	f *models.Flow,
	execution *models.Execution,
	node *models.FlowNode,
) (nodeOutcome, error) {
	e.logger.DebugContext(ctx, "Executing node",
		"execution_id", execution.ID, "node_id", node.ID, "node_type", node.Type)

	switch node.Type {
	case models.NodeTypeTrigger, models.NodeTypeCondition:
		// Triggers are entry points; conditions act during edge selection.
		return outcomeContinue, nil
	case models.NodeTypeMessage:
		return outcomeContinue, e.executeMessageNode(ctx, account, execution, node)
	case models.NodeTypeDelay:
		return outcomeSuspend, e.executeDelayNode(ctx, execution, node)
	case models.NodeTypeAction:
		return e.executeActionNode(ctx, account, f, execution, node)
	default:
		return outcomeContinue, fmt.Errorf("unknown node type %q", node.Type)
	}
}

func (e *Engine) executeMessageNode(ctx context.Context, account *models.Account, execution *models.Execution, node *models.FlowNode) error {
	text := e.resolveMessageText(ctx, account, execution, node)
	if text == "" {
		return fmt.Errorf("message node %s produced no text", node.ID)
	}

	var (
		delivered bool
		err       error
	)

	if node.Data.MessageType == models.MessageTypeQuickReply && len(node.Data.QuickReplyOptions) > 0 {
		delivered, err = e.messenger.SendQuickReplyMessage(ctx, account.ID, execution.SenderID, text, node.Data.QuickReplyOptions)
	} else {
		delivered, err = e.messenger.SendDirectMessage(ctx, account.ID, execution.SenderID, text)
	}

	if err != nil {
		return fmt.Errorf("send message for node %s: %w", node.ID, err)
	}

	// Non-delivery is a recoverable outcome, not an execution failure. The
	// gateway owns retries and rate limiting.
	if !delivered {
		e.logger.WarnContext(ctx, "Message not delivered",
			"execution_id", execution.ID, "node_id", node.ID)
	}

	return nil
}

// resolveMessageText produces the node's outbound text: an AI reply when the
// node and the account both opt in, otherwise the literal text with
// placeholder substitution.
func (e *Engine) resolveMessageText(ctx context.Context, account *models.Account, execution *models.Execution, node *models.FlowNode) string {
	if node.Data.UseAI && account.AIEnabled {
		systemPrompt := e.prompts.BuildSystemPrompt(account)
		if node.Data.AIPrompt != "" {
			systemPrompt = node.Data.AIPrompt + "\n\n" + systemPrompt
		}

		turns := e.prompts.BuildExampleTurns(account)
		turns = append(turns, messaging.Turn{Role: "user", Content: triggerSummary(execution)})

		return e.generator.GenerateReply(ctx, systemPrompt, turns, generateMaxTokens)
	}

	return substitutePlaceholders(node.Data.Text, execution)
}

func substitutePlaceholders(text string, execution *models.Execution) string {
	return strings.NewReplacer(
		"{username}", execution.SenderUsername,
		"{name}", execution.Context.Name,
		"{email}", execution.Context.Email,
		"{phone}", execution.Context.Phone,
	).Replace(text)
}

// triggerSummary renders the trigger event as the user turn handed to the
// reply generator.
func triggerSummary(execution *models.Execution) string {
	c := execution.Context

	var b strings.Builder

	fmt.Fprintf(&b, "User @%s reached out via %s.", execution.SenderUsername, c.TriggerType)

	if c.CommentText != "" {
		fmt.Fprintf(&b, " Their comment: %q.", c.CommentText)
	}

	if c.LastUserMessage != "" {
		fmt.Fprintf(&b, " Their message: %q.", c.LastUserMessage)
	}

	return b.String()
}

func (e *Engine) executeDelayNode(ctx context.Context, execution *models.Execution, node *models.FlowNode) error {
	duration, err := models.DelayDuration(node.Data.DelayValue, node.Data.DelayUnit)
	if err != nil {
		return fmt.Errorf("delay node %s: %w", node.ID, err)
	}

	now := e.clock.Now()
	executeAt := now.Add(duration)

	scheduled := &models.ScheduledExecution{
		ID:          "sched-" + uuid.New().String(),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		AccountID:   execution.AccountID,
		NodeID:      node.ID,
		ExecuteAt:   executeAt,
		Status:      models.ScheduleStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.persistence.SaveScheduledExecution(ctx, scheduled); err != nil {
		return fmt.Errorf("persist wake-up ticket for node %s: %w", node.ID, err)
	}

	execution.Status = models.ExecutionStatusWaiting
	execution.ScheduledAt = &executeAt
	execution.ScheduledNodeID = node.ID

	e.logger.InfoContext(ctx, "Execution parked at delay",
		"execution_id", execution.ID, "node_id", node.ID, "execute_at", executeAt)

	return nil
}

func (e *Engine) executeActionNode(
	ctx context.Context,
	account *models.Account,
	f *models.Flow,
	execution *models.Execution,
	node *models.FlowNode,
) (nodeOutcome, error) {
	switch node.Data.ActionType {
	case models.ActionCollectEmail:
		return outcomeSuspend, e.parkForInput(ctx, account, execution, node, "Could you share your email address?", func(c *models.ExecutionContext) {
			c.AwaitingEmail = true
		})
	case models.ActionCollectPhone:
		return outcomeSuspend, e.parkForInput(ctx, account, execution, node, "Could you share your phone number?", func(c *models.ExecutionContext) {
			c.AwaitingPhone = true
		})
	case models.ActionAddTag:
		execution.Context.AddTag(node.Data.TagName)

		return outcomeContinue, nil
	case models.ActionRemoveTag:
		execution.Context.RemoveTag(node.Data.TagName)

		return outcomeContinue, nil
	case models.ActionCreateLead:
		return outcomeContinue, e.createLead(ctx, f, execution)
	case models.ActionNotify:
		e.logger.InfoContext(ctx, "Flow notification",
			"account_id", account.ID,
			"flow_id", execution.FlowID,
			"execution_id", execution.ID,
			"message", node.Data.NotifyMessage)

		return outcomeContinue, nil
	default:
		return outcomeContinue, fmt.Errorf("unknown action type %q on node %s", node.Data.ActionType, node.ID)
	}
}

// parkForInput sends the collection prompt and parks the execution waiting
// on a user reply. No ticket is created: the wait ends only when an inbound
// message arrives.
func (e *Engine) parkForInput(
	ctx context.Context,
	account *models.Account,
	execution *models.Execution,
	node *models.FlowNode,
	defaultPrompt string,
	flag func(*models.ExecutionContext),
) error {
	prompt := node.Data.Text
	if prompt == "" {
		prompt = defaultPrompt
	}

	if _, err := e.messenger.SendDirectMessage(ctx, account.ID, execution.SenderID, substitutePlaceholders(prompt, execution)); err != nil {
		return fmt.Errorf("send collection prompt for node %s: %w", node.ID, err)
	}

	flag(&execution.Context)
	execution.Status = models.ExecutionStatusWaiting
	execution.ScheduledAt = nil
	execution.ScheduledNodeID = ""

	return nil
}

func (e *Engine) createLead(ctx context.Context, f *models.Flow, execution *models.Execution) error {
	lead := &models.Lead{
		AccountID: execution.AccountID,
		SenderID:  execution.SenderID,
		Username:  execution.SenderUsername,
		Name:      execution.Context.Name,
		Email:     execution.Context.Email,
		Phone:     execution.Context.Phone,
		Tags:      execution.Context.Tags,
		FlowID:    f.ID,
	}

	saved, err := e.persistence.CreateOrUpdateLead(ctx, lead)
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}

	e.logger.InfoContext(ctx, "Lead captured",
		"lead_id", saved.ID, "execution_id", execution.ID, "flow_id", f.ID)

	return nil
}

// evaluateCondition resolves a condition node's predicate against the
// execution context.
func evaluateCondition(node *models.FlowNode, c *models.ExecutionContext) bool {
	switch node.Data.ConditionType {
	case models.ConditionHasEmail:
		return c.Email != ""
	case models.ConditionHasPhone:
		return c.Phone != ""
	case models.ConditionKeywordMatch:
		return flow.KeywordsMatch(node.Data.Keywords, flow.TokenizeMessage(c.LastUserMessage))
	case models.ConditionUserReplied:
		return c.LastUserMessage != ""
	case models.ConditionCustomField:
		return isTruthy(c.CustomFields[node.Data.FieldName])
	default:
		return false
	}
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

// failExecution records a node error terminally and reports it to the
// caller. Save failures are logged; the in-memory state still reflects the
// failure.
func (e *Engine) failExecution(ctx context.Context, execution *models.Execution, cause error) error {
	execution.Fail(cause.Error())
	execution.ScheduledAt = nil
	execution.ScheduledNodeID = ""

	if err := e.saveExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist execution failure",
			"execution_id", execution.ID, "error", err)
	}

	e.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID, "error", cause)

	return cause
}

func (e *Engine) saveExecution(ctx context.Context, execution *models.Execution) error {
	execution.UpdatedAt = e.clock.Now()

	return e.persistence.SaveExecution(ctx, execution)
}
