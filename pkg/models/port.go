// Package models defines port-based addressing for node connections.
package models

// Output handles. A single-output node uses HandleSource; decision nodes branch
// on HandleYes and HandleNo.
const (
	HandleSource = "source"
	HandleYes    = "source-yes"
	HandleNo     = "source-no"
	HandleTarget = "target"
)

// PortDirection represents the direction of data flow for a port.
type PortDirection string

const (
	PortDirectionInput  PortDirection = "input"
	PortDirectionOutput PortDirection = "output"
)

// Port represents a connection point on a node.
type Port struct {
	ID        string        `json:"id"` // "{nodeID}:{handle}"
	NodeID    string        `json:"node_id"`
	Handle    string        `json:"handle"`
	Direction PortDirection `json:"direction"`
}

// OutputHandles returns the output handles a node type exposes.
func OutputHandles(t NodeType) []string {
	switch t {
	case NodeTypeDecision:
		return []string{HandleYes, HandleNo}
	case NodeTypeGoal:
		return nil
	default:
		return []string{HandleSource}
	}
}

// HasInput reports whether nodes of type t accept incoming edges.
func HasInput(t NodeType) bool {
	return t != NodeTypeTrigger
}

// Ports lists the input and output ports of a node.
func (n *Node) Ports() []Port {
	ports := make([]Port, 0, 3)

	if HasInput(n.Type) {
		ports = append(ports, Port{
			ID:        MakePortID(n.ID, HandleTarget),
			NodeID:    n.ID,
			Handle:    HandleTarget,
			Direction: PortDirectionInput,
		})
	}

	for _, handle := range OutputHandles(n.Type) {
		ports = append(ports, Port{
			ID:        MakePortID(n.ID, handle),
			NodeID:    n.ID,
			Handle:    handle,
			Direction: PortDirectionOutput,
		})
	}

	return ports
}

// ParsePortID parses a port ID in format "{node_id}:{handle}" into components.
// Node ids may themselves contain colons, so the last separator wins.
func ParsePortID(portID string) (string, string, bool) {
	for i := len(portID) - 1; i >= 0; i-- {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from node ID and handle.
func MakePortID(nodeID, handle string) string {
	return nodeID + ":" + handle
}

// NormalizeHandle maps the empty handle to HandleSource.
func NormalizeHandle(handle string) string {
	if handle == "" {
		return HandleSource
	}

	return handle
}
