package capabilities

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// BackendCalendar books meetings through the companion backend.
type BackendCalendar struct {
	backend backend
}

// NewBackendCalendar creates a calendar client for the backend at baseURL.
func NewBackendCalendar(baseURL string, logger *slog.Logger) *BackendCalendar {
	return &BackendCalendar{backend: newBackend(baseURL, logger)}
}

type eventResponse struct {
	EventID string `json:"eventId"`
}

// CreateEvent creates a calendar event and returns its id.
func (c *BackendCalendar) CreateEvent(ctx context.Context, credential string, event Event) (string, error) {
	var resp eventResponse

	err := c.backend.do(ctx, http.MethodPost, "/api/calendar/events", credential, event, &resp)
	if err != nil {
		return "", fmt.Errorf("calendar event creation failed: %w", err)
	}

	if resp.EventID == "" {
		return "", fmt.Errorf("%w: missing eventId", ErrMalformedResponse)
	}

	return resp.EventID, nil
}

// NextBusinessSlot returns 10:00 UTC on the next weekday after now.
func NextBusinessSlot(now time.Time) time.Time {
	day := now.UTC().AddDate(0, 0, 1)

	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
}
