// Package persistence provides the storage abstraction for workflows, instances and leads.
package persistence

import (
	"context"
	"time"

	"github.com/quasarerp/automations/pkg/models"
)

// Persistence groups the repositories backing the workflow store.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	InstanceRepository() InstanceRepository
	LeadRepository() LeadRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores deployed workflows. Implementations migrate legacy
// step documents into graphs on load.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	ListActive(ctx context.Context, trigger string) ([]*models.Workflow, error)
	IncrementStats(ctx context.Context, id string, processed, converted int) error
}

// InstanceRepository stores workflow instances. Create must reject a second
// instance for the same (workflow, lead) pair with ErrInstanceAlreadyExists
// atomically.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	FindByWorkflowAndLead(ctx context.Context, workflowID, leadID string) (*models.WorkflowInstance, error)
	Update(ctx context.Context, id string, update models.InstanceUpdate) (*models.WorkflowInstance, error)
	AppendLog(ctx context.Context, id, message string) error
	List(ctx context.Context, filter InstanceFilter) ([]*models.WorkflowInstance, error)
}

// InstanceFilter narrows instance listings. Zero values match everything.
type InstanceFilter struct {
	WorkflowID string
	LeadID     string
	Status     models.InstanceStatus
	DueBefore  *time.Time // only instances with next_run <= DueBefore
}

// Matches reports whether inst satisfies the filter.
func (f InstanceFilter) Matches(inst *models.WorkflowInstance) bool {
	if f.WorkflowID != "" && inst.WorkflowID != f.WorkflowID {
		return false
	}

	if f.LeadID != "" && inst.LeadID != f.LeadID {
		return false
	}

	if f.Status != "" && inst.Status != f.Status {
		return false
	}

	if f.DueBefore != nil && (inst.NextRun == nil || inst.NextRun.After(*f.DueBefore)) {
		return false
	}

	return true
}

// LeadRepository gives the engine access to the CRM-owned lead records.
type LeadRepository interface {
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
	Update(ctx context.Context, id string, update models.LeadUpdate) error
}
