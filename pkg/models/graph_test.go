package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decisionGraph() *Graph {
	return &Graph{
		Nodes: []*Node{
			NewNode("T1", NodeTypeTrigger, "", Position{}),
			NewNode("D1", NodeTypeDecision, "", Position{}),
			NewNode("Gy", NodeTypeGoal, "", Position{}),
			NewNode("Gn", NodeTypeGoal, "", Position{}),
		},
		Edges: []*Edge{
			{ID: "e1", Source: "T1", Target: "D1"},
			{ID: "e2", Source: "D1", Target: "Gy", SourceHandle: HandleYes},
			{ID: "e3", Source: "D1", Target: "Gn", SourceHandle: HandleNo},
		},
	}
}

func TestGraph_Lookups(t *testing.T) {
	graph := decisionGraph()

	node, ok := graph.NodeByID("D1")
	require.True(t, ok)
	assert.Equal(t, NodeTypeDecision, node.Type)

	_, ok = graph.NodeByID("missing")
	assert.False(t, ok)

	trigger, ok := graph.TriggerNode()
	require.True(t, ok)
	assert.Equal(t, "T1", trigger.ID)

	assert.Len(t, graph.OutgoingEdges("D1"), 2)
	assert.Len(t, graph.IncomingEdges("D1"), 1)
	assert.Empty(t, graph.OutgoingEdges("Gy"))
	assert.Equal(t, 2, graph.CountByType(NodeTypeGoal))
}

func TestGraph_NextEdge(t *testing.T) {
	graph := decisionGraph()

	edge, ok := graph.NextEdge("T1", "")
	require.True(t, ok)
	assert.Equal(t, "D1", edge.Target)

	edge, ok = graph.NextEdge("T1", HandleSource)
	require.True(t, ok)
	assert.Equal(t, "D1", edge.Target)

	edge, ok = graph.NextEdge("D1", HandleYes)
	require.True(t, ok)
	assert.Equal(t, "Gy", edge.Target)

	edge, ok = graph.NextEdge("D1", HandleNo)
	require.True(t, ok)
	assert.Equal(t, "Gn", edge.Target)

	_, ok = graph.NextEdge("D1", HandleSource)
	assert.False(t, ok)
}

func TestGraph_NilSafe(t *testing.T) {
	var graph *Graph

	assert.True(t, graph.IsEmpty())
	assert.Nil(t, graph.OutgoingEdges("x"))

	_, ok := graph.TriggerNode()
	assert.False(t, ok)
	assert.Nil(t, graph.Clone())
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	graph := decisionGraph()
	clone := graph.Clone()

	clone.Nodes[0].Label = "changed"
	clone.Edges[0].Target = "Gy"

	assert.NotEqual(t, "changed", graph.Nodes[0].Label)
	assert.Equal(t, "D1", graph.Edges[0].Target)
}

func TestInstanceUpdate_Apply(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	index := 2
	inst := &WorkflowInstance{
		Status:           InstanceStatusWaiting,
		CurrentStepIndex: &index,
		NextRun:          &now,
		Logs:             []string{"first"},
	}

	status := InstanceStatusRunning
	nodeID := "O1"

	InstanceUpdate{
		Status:        &status,
		CurrentNodeID: &nodeID,
		ClearNextRun:  true,
		AppendLogs:    []string{"second"},
	}.Apply(inst, now)

	assert.Equal(t, InstanceStatusRunning, inst.Status)
	assert.Equal(t, "O1", inst.CurrentNodeID)
	assert.Nil(t, inst.CurrentStepIndex)
	assert.Nil(t, inst.NextRun)
	assert.Equal(t, []string{"first", "second"}, inst.Logs)
	assert.Equal(t, now, inst.UpdatedAt)
	assert.True(t, InstanceUpdate{}.IsEmpty())
}

func TestInstanceUpdate_Allows(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	held := at.Add(time.Minute)
	waiting := InstanceStatusWaiting

	tests := []struct {
		name   string
		inst   WorkflowInstance
		update InstanceUpdate
		want   bool
	}{
		{"unconditional", WorkflowInstance{Status: InstanceStatusRunning}, InstanceUpdate{}, true},
		{"status matches", WorkflowInstance{Status: InstanceStatusWaiting}, InstanceUpdate{ExpectStatus: &waiting}, true},
		{"status moved on", WorkflowInstance{Status: InstanceStatusRunning}, InstanceUpdate{ExpectStatus: &waiting}, false},
		{"no lease held", WorkflowInstance{}, InstanceUpdate{Lease: &Lease{At: at, Until: held}}, true},
		{"live lease", WorkflowInstance{LeaseUntil: &held}, InstanceUpdate{Lease: &Lease{At: at, Until: held}}, false},
		{"expired lease", WorkflowInstance{LeaseUntil: &at}, InstanceUpdate{Lease: &Lease{At: at, Until: held}}, true},
		{"lease ignored without claim", WorkflowInstance{LeaseUntil: &held}, InstanceUpdate{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.update.Allows(&tt.inst))
		})
	}
}

func TestInstanceUpdate_Lease(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inst := &WorkflowInstance{}

	InstanceUpdate{Lease: &Lease{At: at, Until: at.Add(time.Minute)}}.Apply(inst, at)
	require.NotNil(t, inst.LeaseUntil)
	assert.Equal(t, at.Add(time.Minute), *inst.LeaseUntil)

	InstanceUpdate{ReleaseLease: true}.Apply(inst, at)
	assert.Nil(t, inst.LeaseUntil)
	assert.False(t, InstanceUpdate{ReleaseLease: true}.IsEmpty())
}

func TestInstanceStatus_IsTerminal(t *testing.T) {
	assert.True(t, InstanceStatusCompleted.IsTerminal())
	assert.True(t, InstanceStatusFailed.IsTerminal())
	assert.False(t, InstanceStatusPaused.IsTerminal())
	assert.False(t, InstanceStatusWaiting.IsTerminal())
	assert.False(t, InstanceStatusRunning.IsTerminal())
}

func TestLead_ContactEmail(t *testing.T) {
	lead := &Lead{}
	assert.Empty(t, lead.ContactEmail())

	lead.EnrichedData = &EnrichedData{Email: "owner@acme.test"}
	assert.Equal(t, "owner@acme.test", lead.ContactEmail())

	lead.Email = "info@acme.test"
	assert.Equal(t, "info@acme.test", lead.ContactEmail())
}

func TestFormatLog(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-01T12:00:00Z [warn] no website", FormatLog(at, LogLevelWarn, "no website"))
}
