// Package nodes implements the side effects of each workflow node type.
package nodes

import (
	"errors"
	"fmt"
	"time"

	"github.com/quasarerp/automations/pkg/models"
)

// ErrNoRecipient is returned when neither the lead nor its enrichment carries an email.
var ErrNoRecipient = errors.New("lead has no email address")

// Kind tells the engine what to do after a node ran.
type Kind int

const (
	// Advance follows the outgoing edge on Outcome.Handle.
	Advance Kind = iota
	// Wait parks the instance until Outcome.NextRun.
	Wait
	// Pause parks the instance until an operator action resumes it.
	Pause
	// Complete ends the instance successfully.
	Complete
)

func (k Kind) String() string {
	switch k {
	case Advance:
		return "advance"
	case Wait:
		return "wait"
	case Pause:
		return "pause"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is an activity log line produced by a node.
type Entry struct {
	Level   models.LogLevel
	Message string
}

// Request is the input of a node execution.
type Request struct {
	Workflow *models.Workflow
	Instance *models.WorkflowInstance
	Node     *models.Node
	Lead     *models.Lead
	Now      time.Time
}

// Outcome is the result of a node execution.
type Outcome struct {
	Kind         Kind
	Handle       string
	NextRun      time.Time
	LeadUpdate   *models.LeadUpdate
	LastThreadID string
	Logs         []Entry
}

// Info appends an informational log entry.
func (o *Outcome) Info(format string, args ...any) {
	o.Logs = append(o.Logs, Entry{Level: models.LogLevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Warn appends a warning log entry.
func (o *Outcome) Warn(format string, args ...any) {
	o.Logs = append(o.Logs, Entry{Level: models.LogLevelWarn, Message: fmt.Sprintf(format, args...)})
}

// AdvanceOn returns an Advance outcome on the given handle.
func AdvanceOn(handle string) Outcome {
	return Outcome{Kind: Advance, Handle: handle}
}
