// Package models defines the core domain models for lead automation workflows.
package models

import "time"

// TriggerLeadApproved is the domain event key fired when a lead is approved.
const TriggerLeadApproved = "LEAD_APPROVED"

// WorkflowStats counts instances started and instances that reached a goal.
type WorkflowStats struct {
	Processed int `json:"processed"`
	Converted int `json:"converted"`
}

// Workflow is a named, deployed automation graph plus its trigger condition.
// Steps is only populated for documents written in the legacy linear format;
// stores migrate it into Graph on load.
type Workflow struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"                 validate:"required,min=1"`
	Active    bool          `json:"active"`
	Trigger   string        `json:"trigger"              validate:"required"`
	Graph     *Graph        `json:"graph,omitempty"`
	Steps     []*LegacyStep `json:"steps,omitempty"`
	Stats     WorkflowStats `json:"stats"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
}

// Normalize migrates legacy steps into a graph. It reports whether a migration
// took place.
func (w *Workflow) Normalize() bool {
	if len(w.Steps) == 0 {
		return false
	}

	if w.Graph.IsEmpty() {
		w.Graph = MigrateLegacySteps(w.Steps)
	}

	w.Steps = nil

	return true
}

// IsRunnable reports whether new instances may be started for the workflow.
func (w *Workflow) IsRunnable() bool {
	return w.Active && w.DeletedAt == nil
}
