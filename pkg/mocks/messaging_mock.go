package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmflow/dmflow/pkg/messaging"
)

// MockMessenger is a mock implementation of messaging.Messenger interface.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendDirectMessage(ctx context.Context, accountID, recipientID, text string) (bool, error) {
	args := m.Called(ctx, accountID, recipientID, text)

	return args.Bool(0), args.Error(1)
}

func (m *MockMessenger) SendQuickReplyMessage(ctx context.Context, accountID, recipientID, text string, options []string) (bool, error) {
	args := m.Called(ctx, accountID, recipientID, text, options)

	return args.Bool(0), args.Error(1)
}

// MockGenerator is a mock implementation of messaging.Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateReply(ctx context.Context, systemPrompt string, turns []messaging.Turn, maxTokens int) string {
	args := m.Called(ctx, systemPrompt, turns, maxTokens)

	return args.String(0)
}
