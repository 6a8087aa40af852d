package events

import (
	"encoding/json"
	"testing"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, LeadApprovedEvent, LeadApproved{}.GetType())
	assert.Equal(t, WorkflowDeployedEvent, WorkflowDeployed{}.GetType())
	assert.Equal(t, InstanceCreatedEvent, InstanceCreated{}.GetType())
	assert.Equal(t, InstanceStatusChangedEvent, InstanceStatusChanged{}.GetType())
}

func TestInstanceStatusChanged_JSON(t *testing.T) {
	instance := &models.WorkflowInstance{
		ID:            "inst-1",
		WorkflowID:    "wf-1",
		LeadID:        "lead-1",
		Status:        models.InstanceStatusPaused,
		CurrentNodeID: "O1",
	}

	event := NewInstanceStatusChanged(instance, models.InstanceStatusRunning)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"instance.status_changed"`)
	assert.Contains(t, string(data), `"from":"RUNNING"`)
	assert.Contains(t, string(data), `"to":"PAUSED"`)

	var decoded InstanceStatusChanged
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "wf-1", decoded.WorkflowID)
	assert.Equal(t, "O1", decoded.CurrentNodeID)
	assert.NotEmpty(t, decoded.ID)
}

func TestNewWorkflowDeployed(t *testing.T) {
	workflow := &models.Workflow{
		ID:      "wf-1",
		Name:    "Outbound",
		Trigger: models.TriggerLeadApproved,
		Graph: &models.Graph{Nodes: []*models.Node{
			models.NewNode("T1", models.NodeTypeTrigger, "", models.Position{}),
		}},
	}

	event := NewWorkflowDeployed(workflow)
	assert.Equal(t, 1, event.Nodes)
	assert.Equal(t, "wf-1", event.WorkflowID)

	assert.Equal(t, 0, NewWorkflowDeployed(&models.Workflow{ID: "empty"}).Nodes)
}
