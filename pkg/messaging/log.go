package messaging

import (
	"context"
	"log/slog"
)

// LogMessenger writes outbound messages to the structured log instead of a
// platform API. It backs deployments where the real gateway is not wired yet
// and doubles as a dry-run messenger.
type LogMessenger struct {
	logger *slog.Logger
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With("module", "messenger")}
}

func (m *LogMessenger) SendDirectMessage(ctx context.Context, accountID, recipientID, text string) (bool, error) {
	m.logger.InfoContext(ctx, "Sending direct message",
		"account_id", accountID,
		"recipient_id", recipientID,
		"text", text)

	return true, nil
}

func (m *LogMessenger) SendQuickReplyMessage(ctx context.Context, accountID, recipientID, text string, options []string) (bool, error) {
	m.logger.InfoContext(ctx, "Sending quick reply message",
		"account_id", accountID,
		"recipient_id", recipientID,
		"text", text,
		"options", options)

	return true, nil
}

// FallbackGenerator answers every generation request with a fixed fallback
// string. It stands in for the text-generation backend, which is an external
// collaborator.
type FallbackGenerator struct {
	Fallback string
}

const defaultFallback = "Thanks for reaching out! We'll get back to you shortly."

func (g *FallbackGenerator) GenerateReply(_ context.Context, _ string, _ []Turn, _ int) string {
	if g.Fallback == "" {
		return defaultFallback
	}

	return g.Fallback
}
