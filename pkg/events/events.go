// Package events defines the domain events exchanged between the API and the worker.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/models"
)

type EventType string

// Topic carries every automation event.
const Topic = "quasar.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	LeadApprovedEvent          EventType = "lead.approved"
	WorkflowDeployedEvent      EventType = "workflow.deployed"
	InstanceCreatedEvent       EventType = "instance.created"
	InstanceStatusChangedEvent EventType = "instance.status_changed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// NewBaseEvent stamps a new event.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// LeadApproved is published by the CRM when an operator approves a lead.
type LeadApproved struct {
	BaseEvent

	LeadID string `json:"lead_id"`
}

func (LeadApproved) GetType() EventType {
	return LeadApprovedEvent
}

// NewLeadApproved creates a LeadApproved event.
func NewLeadApproved(leadID string) *LeadApproved {
	return &LeadApproved{BaseEvent: NewBaseEvent(LeadApprovedEvent, ""), LeadID: leadID}
}

// WorkflowDeployed is published when the designer deploys a workflow.
type WorkflowDeployed struct {
	BaseEvent

	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	Nodes   int    `json:"nodes"`
}

func (WorkflowDeployed) GetType() EventType {
	return WorkflowDeployedEvent
}

// NewWorkflowDeployed creates a WorkflowDeployed event.
func NewWorkflowDeployed(workflow *models.Workflow) *WorkflowDeployed {
	nodes := 0
	if workflow.Graph != nil {
		nodes = len(workflow.Graph.Nodes)
	}

	return &WorkflowDeployed{
		BaseEvent: NewBaseEvent(WorkflowDeployedEvent, workflow.ID),
		Name:      workflow.Name,
		Trigger:   workflow.Trigger,
		Nodes:     nodes,
	}
}

// InstanceCreated is published when the trigger listener starts an instance.
type InstanceCreated struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	LeadID     string `json:"lead_id"`
}

func (InstanceCreated) GetType() EventType {
	return InstanceCreatedEvent
}

// NewInstanceCreated creates an InstanceCreated event.
func NewInstanceCreated(instance *models.WorkflowInstance) *InstanceCreated {
	return &InstanceCreated{
		BaseEvent:  NewBaseEvent(InstanceCreatedEvent, instance.WorkflowID),
		InstanceID: instance.ID,
		LeadID:     instance.LeadID,
	}
}

// InstanceStatusChanged is published on every persisted status transition.
type InstanceStatusChanged struct {
	BaseEvent

	InstanceID    string                `json:"instance_id"`
	LeadID        string                `json:"lead_id"`
	From          models.InstanceStatus `json:"from"`
	To            models.InstanceStatus `json:"to"`
	CurrentNodeID string                `json:"current_node_id,omitempty"`
}

func (InstanceStatusChanged) GetType() EventType {
	return InstanceStatusChangedEvent
}

// NewInstanceStatusChanged creates an InstanceStatusChanged event.
func NewInstanceStatusChanged(
	instance *models.WorkflowInstance,
	from models.InstanceStatus,
) *InstanceStatusChanged {
	return &InstanceStatusChanged{
		BaseEvent:     NewBaseEvent(InstanceStatusChangedEvent, instance.WorkflowID),
		InstanceID:    instance.ID,
		LeadID:        instance.LeadID,
		From:          from,
		To:            instance.Status,
		CurrentNodeID: instance.CurrentNodeID,
	}
}
