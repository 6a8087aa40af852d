package capabilities

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// BackendMailer sends mail and checks threads through the companion backend.
type BackendMailer struct {
	backend backend
}

// NewBackendMailer creates a mailer for the backend at baseURL.
func NewBackendMailer(baseURL string, logger *slog.Logger) *BackendMailer {
	return &BackendMailer{backend: newBackend(baseURL, logger)}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	ThreadID string `json:"threadId"`
}

// Send delivers an email and returns its conversation thread id.
func (m *BackendMailer) Send(ctx context.Context, credential, to, subject, body string) (string, error) {
	var resp sendResponse

	err := m.backend.do(ctx, http.MethodPost, "/api/mail/send", credential, sendRequest{
		To:      to,
		Subject: subject,
		Body:    body,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("mail send failed: %w", err)
	}

	if resp.ThreadID == "" {
		return "", fmt.Errorf("%w: missing threadId", ErrMalformedResponse)
	}

	return resp.ThreadID, nil
}

type replyResponse struct {
	Replied bool `json:"replied"`
}

// CheckThreadForReply reports whether the thread has an inbound reply.
func (m *BackendMailer) CheckThreadForReply(ctx context.Context, credential, threadID string) (bool, error) {
	var resp replyResponse

	err := m.backend.do(ctx, http.MethodGet,
		"/api/mail/threads/"+url.PathEscape(threadID)+"/replied", credential, nil, &resp)
	if err != nil {
		return false, fmt.Errorf("reply check failed: %w", err)
	}

	return resp.Replied, nil
}
