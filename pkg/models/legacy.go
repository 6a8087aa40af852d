package models

import (
	"encoding/json"
	"strconv"
)

// LegacyStep is one entry of the linear "steps" workflow format.
type LegacyStep struct {
	Type   NodeType       `json:"type"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

const (
	legacyStartID = "step-start"
	legacyEndID   = "step-end"
	legacySpacing = 300
)

// MigratedNodeID returns the graph node id given to the legacy step at index.
func MigratedNodeID(index int) string {
	return "step-" + strconv.Itoa(index)
}

// MigrateLegacySteps converts a linear step list into an equivalent graph.
// Walking off the end of a legacy list completed the instance, so a goal node is
// appended when the last step is not one. Decision steps continue on "no" and
// finish on "yes".
func MigrateLegacySteps(steps []*LegacyStep) *Graph {
	graph := &Graph{}

	if len(steps) == 0 {
		return graph
	}

	ids := make([]string, 0, len(steps)+2)

	if steps[0].Type != NodeTypeTrigger {
		graph.Nodes = append(graph.Nodes, NewNode(legacyStartID, NodeTypeTrigger, "", Position{}))
		ids = append(ids, legacyStartID)
	}

	for i, step := range steps {
		node := NewNode(MigratedNodeID(i), step.Type, step.Label, Position{X: float64((i + 1) * legacySpacing)})

		if len(step.Config) > 0 {
			raw, err := json.Marshal(step.Config)
			if err == nil {
				data, err := DecodeNodeData(step.Type, raw)
				if err == nil {
					node.Data = data
				}
			}
		}

		graph.Nodes = append(graph.Nodes, node)
		ids = append(ids, node.ID)
	}

	if steps[len(steps)-1].Type != NodeTypeGoal {
		x := float64((len(steps) + 1) * legacySpacing)
		graph.Nodes = append(graph.Nodes, NewNode(legacyEndID, NodeTypeGoal, "Done", Position{X: x}))
		ids = append(ids, legacyEndID)
	}

	for i := 0; i < len(ids)-1; i++ {
		source, _ := graph.NodeByID(ids[i])

		switch source.Type {
		case NodeTypeGoal:
			continue
		case NodeTypeDecision:
			yesID := source.ID + "-yes"
			graph.Nodes = append(graph.Nodes, NewNode(yesID, NodeTypeGoal, "Replied", Position{
				X: source.Position.X,
				Y: legacySpacing,
			}))
			graph.Edges = append(graph.Edges,
				&Edge{ID: "e-" + source.ID + "-yes", Source: source.ID, Target: yesID, SourceHandle: HandleYes},
				&Edge{ID: "e-" + source.ID + "-no", Source: source.ID, Target: ids[i+1], SourceHandle: HandleNo},
			)
		default:
			graph.Edges = append(graph.Edges, &Edge{
				ID:     "e-" + source.ID,
				Source: source.ID,
				Target: ids[i+1],
			})
		}
	}

	return graph
}
