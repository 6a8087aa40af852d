package services

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/nodes"
)

// ValidateGraph checks that a graph can be executed: one trigger, known node
// types with valid configuration, edges that respect each node's ports with a
// single successor per output, no cycles, every node reachable from the
// trigger and every path ending in a goal. A lone trigger is accepted.
func ValidateGraph(g *models.Graph) error {
	if g.IsEmpty() {
		return ErrNodesRequired
	}

	err := validateNodes(g)
	if err != nil {
		return err
	}

	trigger, _ := g.TriggerNode()

	err = validateEdges(g)
	if err != nil {
		return err
	}

	err = validateTopology(g, trigger.ID)
	if err != nil {
		return err
	}

	return validateSinks(g)
}

func validateNodes(g *models.Graph) error {
	seen := make(map[string]bool, len(g.Nodes))

	for _, node := range g.Nodes {
		if node == nil || node.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidNodeType)
		}

		if seen[node.ID] {
			return fmt.Errorf("%w: node %s", ErrDuplicateID, node.ID)
		}

		seen[node.ID] = true

		if !node.Type.Valid() {
			return fmt.Errorf("%w: node %s has type %q", ErrInvalidNodeType, node.ID, node.Type)
		}

		err := nodes.ValidateData(node)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidNodeConfig, err)
		}
	}

	if count := g.CountByType(models.NodeTypeTrigger); count != 1 {
		return fmt.Errorf("%w: found %d", ErrTriggerNodeRequired, count)
	}

	return nil
}

func validateEdges(g *models.Graph) error {
	ids := make(map[string]bool, len(g.Edges))
	outputs := make(map[string]bool, len(g.Edges))

	for _, edge := range g.Edges {
		if edge == nil || edge.ID == "" {
			return fmt.Errorf("%w: edge without id", ErrInvalidEdge)
		}

		if ids[edge.ID] {
			return fmt.Errorf("%w: edge %s", ErrDuplicateID, edge.ID)
		}

		ids[edge.ID] = true

		source, ok := g.NodeByID(edge.Source)
		if !ok {
			return fmt.Errorf("%w: edge %s leaves unknown node %s", ErrInvalidEdge, edge.ID, edge.Source)
		}

		target, ok := g.NodeByID(edge.Target)
		if !ok {
			return fmt.Errorf("%w: edge %s enters unknown node %s", ErrInvalidEdge, edge.ID, edge.Target)
		}

		if !models.HasInput(target.Type) {
			return fmt.Errorf("%w: edge %s enters %s node %s", ErrInvalidEdge, edge.ID, target.Type, target.ID)
		}

		if !slices.Contains(models.OutputHandles(source.Type), edge.Handle()) {
			return fmt.Errorf("%w: %s node %s has no output %q", ErrInvalidEdge, source.Type, source.ID, edge.Handle())
		}

		port := models.MakePortID(source.ID, edge.Handle())
		if outputs[port] {
			return fmt.Errorf("%w: output %s has more than one edge", ErrInvalidEdge, port)
		}

		outputs[port] = true
	}

	return nil
}

func validateTopology(g *models.Graph, triggerID string) error {
	dag := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, node := range g.Nodes {
		err := dag.AddVertex(node.ID)
		if err != nil {
			return fmt.Errorf("failed to add node %s: %w", node.ID, err)
		}
	}

	for _, edge := range g.Edges {
		err := dag.AddEdge(edge.Source, edge.Target)

		switch {
		case errors.Is(err, graph.ErrEdgeCreatesCycle):
			return fmt.Errorf("%w: edge %s from %s to %s", ErrGraphCyclic, edge.ID, edge.Source, edge.Target)
		case errors.Is(err, graph.ErrEdgeAlreadyExists):
			// decision branches may share a target
		case err != nil:
			return fmt.Errorf("failed to add edge %s: %w", edge.ID, err)
		}
	}

	reached := make(map[string]bool, len(g.Nodes))

	err := graph.BFS(dag, triggerID, func(id string) bool {
		reached[id] = true

		return false
	})
	if err != nil {
		return fmt.Errorf("failed to walk graph: %w", err)
	}

	for _, node := range g.Nodes {
		if !reached[node.ID] {
			return fmt.Errorf("%w: %s", ErrUnreachableNode, node.ID)
		}
	}

	return nil
}

// validateSinks rejects nodes other than goals that nothing leaves.
func validateSinks(g *models.Graph) error {
	if len(g.Edges) == 0 {
		return nil
	}

	for _, node := range g.Nodes {
		if node.Type == models.NodeTypeGoal {
			continue
		}

		if len(g.OutgoingEdges(node.ID)) == 0 {
			return fmt.Errorf("%w: %s node %s", ErrDeadEndNode, node.Type, node.ID)
		}
	}

	return nil
}
