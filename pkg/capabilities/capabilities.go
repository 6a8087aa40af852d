// Package capabilities defines the external collaborators the execution engine
// depends on and HTTP clients for the companion backend that implements them.
package capabilities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrUnexpectedStatus is returned when a capability answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected capability response status")

	// ErrMalformedResponse is returned when a capability response cannot be decoded
	// or does not match the requested shape.
	ErrMalformedResponse = errors.New("malformed capability response")

	// ErrCredentialRejected is returned when the backend rejects the bearer credential.
	ErrCredentialRejected = errors.New("credential rejected")
)

// Fetcher retrieves a web page. It returns an empty string, not an error, when
// every retrieval path fails.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Completer is the AI text capability.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userContent string, shape Shape) (json.RawMessage, error)
}

// Mailer is the outbound mail capability.
type Mailer interface {
	Send(ctx context.Context, credential, to, subject, body string) (string, error)
	CheckThreadForReply(ctx context.Context, credential, threadID string) (bool, error)
}

// Calendar is the meeting booking capability.
type Calendar interface {
	CreateEvent(ctx context.Context, credential string, event Event) (string, error)
}

// Event is a calendar invitation.
type Event struct {
	Attendee string    `json:"attendee"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// backend is the shared HTTP plumbing for companion backend clients.
type backend struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func newBackend(baseURL string, logger *slog.Logger) backend {
	return backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// do sends a JSON request and decodes a JSON response into out.
func (b backend) do(ctx context.Context, method, path, credential string, in, out any) error {
	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			b.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrCredentialRejected)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s returned %d: %w", method, path, resp.StatusCode, ErrUnexpectedStatus)
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return nil
}
