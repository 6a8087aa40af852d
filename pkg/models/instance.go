package models

import (
	"fmt"
	"time"
)

// InstanceStatus is the state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusRunning   InstanceStatus = "RUNNING"
	InstanceStatusWaiting   InstanceStatus = "WAITING"
	InstanceStatusPaused    InstanceStatus = "PAUSED"
	InstanceStatusCompleted InstanceStatus = "COMPLETED"
	InstanceStatusFailed    InstanceStatus = "FAILED"
)

// IsTerminal reports whether the status is absorbing.
func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusFailed
}

// Valid reports whether s is a known status.
func (s InstanceStatus) Valid() bool {
	switch s {
	case InstanceStatusRunning, InstanceStatusWaiting, InstanceStatusPaused,
		InstanceStatusCompleted, InstanceStatusFailed:
		return true
	default:
		return false
	}
}

// WorkflowInstance is one execution of a workflow against one lead.
type WorkflowInstance struct {
	ID               string         `json:"id"`
	WorkflowID       string         `json:"workflowId"`
	LeadID           string         `json:"leadId"`
	Status           InstanceStatus `json:"status"`
	CurrentNodeID    string         `json:"currentNodeId,omitempty"`
	CurrentStepIndex *int           `json:"currentStepIndex,omitempty"`
	LastThreadID     string         `json:"last_thread_id,omitempty"`
	NextRun          *time.Time     `json:"next_run,omitempty"`
	LeaseUntil       *time.Time     `json:"lease_until,omitempty"`
	Logs             []string       `json:"logs"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Lease is the exclusive right to step an instance until Until. It is taken at
// At and only granted when no other lease is live at that time.
type Lease struct {
	At    time.Time
	Until time.Time
}

// InstanceUpdate is a partial update of an instance. Nil fields are left alone.
// ExpectStatus and Lease are preconditions: stores reject the whole update with
// persistence.ErrInstanceClaimed when the stored status differs or another
// lease is still live.
type InstanceUpdate struct {
	ExpectStatus  *InstanceStatus
	Lease         *Lease
	ReleaseLease  bool
	Status        *InstanceStatus
	CurrentNodeID *string
	LastThreadID  *string
	NextRun       *time.Time
	ClearNextRun  bool
	AppendLogs    []string
}

// IsEmpty reports whether the update changes nothing.
func (u InstanceUpdate) IsEmpty() bool {
	return u.Status == nil && u.CurrentNodeID == nil && u.LastThreadID == nil &&
		u.NextRun == nil && !u.ClearNextRun && len(u.AppendLogs) == 0 &&
		u.Lease == nil && !u.ReleaseLease
}

// Allows reports whether the update's preconditions hold for inst.
func (u InstanceUpdate) Allows(inst *WorkflowInstance) bool {
	if u.ExpectStatus != nil && inst.Status != *u.ExpectStatus {
		return false
	}

	if u.Lease != nil && inst.LeaseUntil != nil && u.Lease.At.Before(*inst.LeaseUntil) {
		return false
	}

	return true
}

// Apply writes the update onto inst.
func (u InstanceUpdate) Apply(inst *WorkflowInstance, now time.Time) {
	if u.Status != nil {
		inst.Status = *u.Status
	}

	if u.CurrentNodeID != nil {
		inst.CurrentNodeID = *u.CurrentNodeID
		inst.CurrentStepIndex = nil
	}

	if u.LastThreadID != nil {
		inst.LastThreadID = *u.LastThreadID
	}

	if u.ClearNextRun {
		inst.NextRun = nil
	}

	if u.NextRun != nil {
		next := *u.NextRun
		inst.NextRun = &next
	}

	if u.ReleaseLease {
		inst.LeaseUntil = nil
	}

	if u.Lease != nil {
		until := u.Lease.Until
		inst.LeaseUntil = &until
	}

	inst.Logs = append(inst.Logs, u.AppendLogs...)
	inst.UpdatedAt = now
}

// LogLevel tags an activity log line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// FormatLog renders an activity log line.
func FormatLog(at time.Time, level LogLevel, message string) string {
	return fmt.Sprintf("%s [%s] %s", at.UTC().Format(time.RFC3339), level, message)
}
