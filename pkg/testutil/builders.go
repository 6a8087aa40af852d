// Package testutil provides test data builders for workflows, graphs and leads.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/models"
)

// GraphBuilder assembles a graph node by node, laying nodes out left to right.
type GraphBuilder struct {
	graph *models.Graph
}

// NewGraph starts an empty graph.
func NewGraph() *GraphBuilder {
	return &GraphBuilder{graph: &models.Graph{}}
}

// Node adds a node of type t with its default payload.
func (b *GraphBuilder) Node(id string, t models.NodeType, overrides ...func(*models.Node)) *GraphBuilder {
	pos := models.Position{X: float64(len(b.graph.Nodes) * 300)}
	node := models.NewNode(id, t, "", pos)

	for _, override := range overrides {
		override(node)
	}

	b.graph.Nodes = append(b.graph.Nodes, node)

	return b
}

// Edge connects source to target on the default output.
func (b *GraphBuilder) Edge(source, target string) *GraphBuilder {
	return b.EdgeOn(source, "", target)
}

// EdgeOn connects source to target on the given output handle.
func (b *GraphBuilder) EdgeOn(source, handle, target string) *GraphBuilder {
	b.graph.Edges = append(b.graph.Edges, &models.Edge{
		ID:           "e-" + source + "-" + models.NormalizeHandle(handle) + "-" + target,
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	})

	return b
}

// Build returns the assembled graph.
func (b *GraphBuilder) Build() *models.Graph {
	return b.graph
}

// WithData sets the node payload.
func WithData(data models.NodeData) func(*models.Node) {
	return func(n *models.Node) {
		n.Data = data
	}
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.Node) {
	return func(n *models.Node) {
		n.Label = label
	}
}

// LinearGraph returns trigger(T1) -> enrichment(E1) -> outreach(O1) -> goal(G1).
func LinearGraph() *models.Graph {
	return NewGraph().
		Node("T1", models.NodeTypeTrigger).
		Node("E1", models.NodeTypeEnrichment).
		Node("O1", models.NodeTypeOutreach, WithData(models.OutreachData{
			Subject: "Quick idea for {{ .lead.company }}",
			Body:    "Mention {{ .lead.usps }}",
		})).
		Node("G1", models.NodeTypeGoal).
		Edge("T1", "E1").
		Edge("E1", "O1").
		Edge("O1", "G1").
		Build()
}

// DecisionGraph returns trigger(T1) -> decision(D1) branching to goal(Gy) and goal(Gn).
func DecisionGraph() *models.Graph {
	return NewGraph().
		Node("T1", models.NodeTypeTrigger).
		Node("D1", models.NodeTypeDecision).
		Node("Gy", models.NodeTypeGoal, WithLabel("Replied")).
		Node("Gn", models.NodeTypeGoal, WithLabel("No reply")).
		Edge("T1", "D1").
		EdgeOn("D1", models.HandleYes, "Gy").
		EdgeOn("D1", models.HandleNo, "Gn").
		Build()
}

// CreateTestWorkflow creates an active LEAD_APPROVED workflow around graph.
func CreateTestWorkflow(graph *models.Graph, overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		Active:    true,
		Trigger:   models.TriggerLeadApproved,
		Graph:     graph,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// CreateTestLead creates a lead with a website and an email address.
func CreateTestLead(overrides ...func(*models.Lead)) *models.Lead {
	lead := &models.Lead{
		ID:      uuid.New().String(),
		Name:    "Jane Baker",
		Company: "Baker & Co",
		Website: "https://baker.example",
		Email:   "jane@baker.example",
	}

	for _, override := range overrides {
		override(lead)
	}

	return lead
}
