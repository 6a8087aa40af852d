package models

// Edge is a directed link between two nodes. SourceHandle names the output port
// it leaves from; empty means HandleSource.
type Edge struct {
	ID           string `json:"id"                     validate:"required"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Handle returns the normalized output handle of the edge.
func (e *Edge) Handle() string {
	return NormalizeHandle(e.SourceHandle)
}

// Graph is the node/edge structure owned by a workflow.
type Graph struct {
	Nodes []*Node `json:"nodes" validate:"dive"`
	Edges []*Edge `json:"edges" validate:"dive"`
}

// IsEmpty reports whether the graph has no nodes.
func (g *Graph) IsEmpty() bool {
	return g == nil || len(g.Nodes) == 0
}

// NodeByID finds a node by id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	if g == nil {
		return nil, false
	}

	for _, node := range g.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// EdgeByID finds an edge by id.
func (g *Graph) EdgeByID(id string) (*Edge, bool) {
	if g == nil {
		return nil, false
	}

	for _, edge := range g.Edges {
		if edge.ID == id {
			return edge, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving the given node.
func (g *Graph) OutgoingEdges(source string) []*Edge {
	if g == nil {
		return nil
	}

	var edges []*Edge

	for _, edge := range g.Edges {
		if edge.Source == source {
			edges = append(edges, edge)
		}
	}

	return edges
}

// IncomingEdges returns the edges entering the given node.
func (g *Graph) IncomingEdges(target string) []*Edge {
	if g == nil {
		return nil
	}

	var edges []*Edge

	for _, edge := range g.Edges {
		if edge.Target == target {
			edges = append(edges, edge)
		}
	}

	return edges
}

// NextEdge returns the outgoing edge of source on the given handle.
// An empty handle matches edges without a handle or with HandleSource.
func (g *Graph) NextEdge(source, handle string) (*Edge, bool) {
	want := NormalizeHandle(handle)

	for _, edge := range g.OutgoingEdges(source) {
		if edge.Handle() == want {
			return edge, true
		}
	}

	return nil, false
}

// FindByType returns the first node of the given type.
func (g *Graph) FindByType(t NodeType) (*Node, bool) {
	if g == nil {
		return nil, false
	}

	for _, node := range g.Nodes {
		if node.Type == t {
			return node, true
		}
	}

	return nil, false
}

// TriggerNode returns the start node of the graph.
func (g *Graph) TriggerNode() (*Node, bool) {
	return g.FindByType(NodeTypeTrigger)
}

// CountByType returns how many nodes of type t the graph holds.
func (g *Graph) CountByType(t NodeType) int {
	if g == nil {
		return 0
	}

	count := 0

	for _, node := range g.Nodes {
		if node.Type == t {
			count++
		}
	}

	return count
}

// Clone returns a deep copy of the graph's node and edge slices.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}

	clone := &Graph{
		Nodes: make([]*Node, 0, len(g.Nodes)),
		Edges: make([]*Edge, 0, len(g.Edges)),
	}

	for _, node := range g.Nodes {
		n := *node
		clone.Nodes = append(clone.Nodes, &n)
	}

	for _, edge := range g.Edges {
		e := *edge
		clone.Edges = append(clone.Edges, &e)
	}

	return clone
}
