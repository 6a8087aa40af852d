package mocks

import (
	"context"
	"encoding/json"

	"github.com/quasarerp/automations/pkg/capabilities"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of capabilities.Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) string {
	args := m.Called(ctx, url)

	return args.String(0)
}

// MockCompleter is a mock implementation of capabilities.Completer interface.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(
	ctx context.Context,
	systemPrompt, userContent string,
	shape capabilities.Shape,
) (json.RawMessage, error) {
	args := m.Called(ctx, systemPrompt, userContent, shape)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockMailer is a mock implementation of capabilities.Mailer interface.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, credential, to, subject, body string) (string, error) {
	args := m.Called(ctx, credential, to, subject, body)

	return args.String(0), args.Error(1)
}

func (m *MockMailer) CheckThreadForReply(ctx context.Context, credential, threadID string) (bool, error) {
	args := m.Called(ctx, credential, threadID)

	return args.Bool(0), args.Error(1)
}

// MockCalendar is a mock implementation of capabilities.Calendar interface.
type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) CreateEvent(ctx context.Context, credential string, event capabilities.Event) (string, error) {
	args := m.Called(ctx, credential, event)

	return args.String(0), args.Error(1)
}
