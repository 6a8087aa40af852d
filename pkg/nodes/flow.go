package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quasarerp/automations/pkg/capabilities"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/models"
)

// DefaultMeetingMinutes is the length of a booked meeting when unset.
const DefaultMeetingMinutes = 30

// Waiter schedules the instance's next run.
type Waiter struct{}

// Execute parks the instance for the configured number of days.
func (Waiter) Execute(req Request, data models.WaitData) Outcome {
	next := req.Now.Add(data.Duration())

	outcome := Outcome{Kind: Wait, NextRun: next}
	outcome.Info("Waiting %d day(s) until %s", int(data.Duration()/(24*time.Hour)), next.UTC().Format(time.RFC3339))

	return outcome
}

// Decider branches on whether the lead replied to the last email.
type Decider struct {
	credentials credentials.Store
	mailer      capabilities.Mailer
}

// NewDecider creates a Decider.
func NewDecider(store credentials.Store, mailer capabilities.Mailer) *Decider {
	return &Decider{credentials: store, mailer: mailer}
}

// Execute follows source-yes when a reply was found, source-no otherwise. A
// missing credential or thread counts as no reply.
func (d *Decider) Execute(ctx context.Context, req Request) (Outcome, error) {
	token, err := d.credentials.Get(ctx, credentials.KindMail)
	if err != nil {
		return Outcome{}, fmt.Errorf("reply check failed: %w", err)
	}

	var replied bool

	switch {
	case token == "":
		outcome := AdvanceOn(models.HandleNo)
		outcome.Warn("Reply check skipped: mail account not connected")

		return outcome, nil
	case req.Instance.LastThreadID == "":
		outcome := AdvanceOn(models.HandleNo)
		outcome.Warn("Reply check skipped: no email thread recorded")

		return outcome, nil
	default:
		replied, err = d.mailer.CheckThreadForReply(ctx, token, req.Instance.LastThreadID)
		if errors.Is(err, capabilities.ErrCredentialRejected) {
			outcome := Outcome{Kind: Pause}
			outcome.Warn("Reply check paused: mail account rejected the credential, reconnect it to resume")

			return outcome, nil
		}

		if err != nil {
			return Outcome{}, err
		}
	}

	if replied {
		outcome := AdvanceOn(models.HandleYes)
		outcome.Info("Reply detected on thread %s", req.Instance.LastThreadID)

		return outcome, nil
	}

	outcome := AdvanceOn(models.HandleNo)
	outcome.Info("No reply yet on thread %s", req.Instance.LastThreadID)

	return outcome, nil
}

// GoalReacher completes the instance, optionally booking a meeting.
type GoalReacher struct {
	credentials credentials.Store
	calendar    capabilities.Calendar
}

// NewGoalReacher creates a GoalReacher. calendar may be nil.
func NewGoalReacher(store credentials.Store, calendar capabilities.Calendar) *GoalReacher {
	return &GoalReacher{credentials: store, calendar: calendar}
}

// Execute completes the instance. Meeting booking problems are logged as
// warnings and never fail a reached goal.
func (g *GoalReacher) Execute(ctx context.Context, req Request, data models.GoalData) Outcome {
	outcome := Outcome{Kind: Complete}
	outcome.Info("Goal reached: %s", req.Node.Label)

	if !data.BookMeeting {
		return outcome
	}

	if g.calendar == nil {
		outcome.Warn("Meeting not booked: no calendar configured")

		return outcome
	}

	token, err := g.credentials.Get(ctx, credentials.KindCalendar)
	if err != nil || token == "" {
		outcome.Warn("Meeting not booked: calendar not connected")

		return outcome
	}

	attendee := req.Lead.ContactEmail()
	if attendee == "" {
		outcome.Warn("Meeting not booked: lead has no email address")

		return outcome
	}

	minutes := data.MeetingMinutes
	if minutes <= 0 {
		minutes = DefaultMeetingMinutes
	}

	start := capabilities.NextBusinessSlot(req.Now)

	eventID, err := g.calendar.CreateEvent(ctx, token, capabilities.Event{
		Attendee: attendee,
		Title:    "Intro call with " + req.Lead.Name,
		Start:    start,
		End:      start.Add(time.Duration(minutes) * time.Minute),
	})
	if err != nil {
		outcome.Warn("Meeting not booked: %v", err)

		return outcome
	}

	outcome.Info("Meeting booked for %s (event %s)", start.Format(time.RFC3339), eventID)

	return outcome
}
