// Package web provides HTTP request and response types for the automations API.
package web

import (
	"time"

	"github.com/quasarerp/automations/pkg/models"
)

// SetActiveRequest represents the request body for toggling a workflow.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// CredentialRequest represents the request body for connecting a credential.
type CredentialRequest struct {
	Token string `json:"token" validate:"required"`
}

// InstanceSummary is the list view of an instance, without its log stream.
type InstanceSummary struct {
	ID            string                `json:"id"`
	WorkflowID    string                `json:"workflow_id"`
	LeadID        string                `json:"lead_id"`
	Status        models.InstanceStatus `json:"status"`
	CurrentNodeID string                `json:"current_node_id,omitempty"`
	NextRun       *time.Time            `json:"next_run,omitempty"`
	LastLog       string                `json:"last_log,omitempty"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// SummarizeInstance builds the list view of an instance.
func SummarizeInstance(instance *models.WorkflowInstance) InstanceSummary {
	summary := InstanceSummary{
		ID:            instance.ID,
		WorkflowID:    instance.WorkflowID,
		LeadID:        instance.LeadID,
		Status:        instance.Status,
		CurrentNodeID: instance.CurrentNodeID,
		NextRun:       instance.NextRun,
		UpdatedAt:     instance.UpdatedAt,
	}

	if n := len(instance.Logs); n > 0 {
		summary.LastLog = instance.Logs[n-1]
	}

	return summary
}
