package designer

import (
	"fmt"
	"slices"

	"github.com/quasarerp/automations/pkg/models"
)

// Connection is an edge being dragged out of an output port.
type Connection struct {
	Source string
	Handle string
	Cursor Point // graph space
}

// Connection returns the in-flight connection, if any.
func (s *Session) Connection() (Connection, bool) {
	if s.connection == nil {
		return Connection{}, false
	}

	return *s.connection, true
}

// StartConnection begins dragging an edge out of the handle output port of
// node source.
func (s *Session) StartConnection(source, handle string) error {
	if s.closed {
		return ErrSessionClosed
	}

	node, ok := s.graph.NodeByID(source)
	if !ok {
		return ErrNodeNotFound
	}

	handle = models.NormalizeHandle(handle)
	if !slices.Contains(models.OutputHandles(node.Type), handle) {
		return fmt.Errorf("%w: %s has no output %q", ErrInvalidPort, node.Type, handle)
	}

	s.connection = &Connection{
		Source: source,
		Handle: handle,
		Cursor: OutputPoint(node, handle),
	}

	return nil
}

// UpdateConnection moves the loose end of the connection to a screen point.
func (s *Session) UpdateConnection(screen Point) {
	if s.connection == nil {
		return
	}

	s.connection.Cursor = s.view.ScreenToGraph(screen)
}

// ConnectionPath returns the rubber-band path from the source port to the
// cursor.
func (s *Session) ConnectionPath() (string, bool) {
	if s.connection == nil {
		return "", false
	}

	node, ok := s.graph.NodeByID(s.connection.Source)
	if !ok {
		return "", false
	}

	return CurvePath(OutputPoint(node, s.connection.Handle), s.connection.Cursor), true
}

// CompleteConnection drops the connection on the input port of target and
// commits the edge. An existing edge from the same output port is replaced.
// The connection ends whether or not the edge was committed.
func (s *Session) CompleteConnection(target string) (*models.Edge, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	conn := s.connection
	s.connection = nil

	if conn == nil {
		return nil, ErrNoConnection
	}

	if target == conn.Source {
		return nil, ErrSelfConnection
	}

	node, ok := s.graph.NodeByID(target)
	if !ok {
		return nil, ErrNodeNotFound
	}

	if !models.HasInput(node.Type) {
		return nil, fmt.Errorf("%w: %s has no input", ErrInvalidPort, node.Type)
	}

	s.graph.Edges = slices.DeleteFunc(s.graph.Edges, func(e *models.Edge) bool {
		return e.Source == conn.Source && e.Handle() == conn.Handle
	})

	edge := &models.Edge{
		ID:           s.newID(),
		Source:       conn.Source,
		Target:       target,
		SourceHandle: conn.Handle,
	}
	s.graph.Edges = append(s.graph.Edges, edge)

	return edge, nil
}

// CancelConnection drops the connection without creating an edge.
func (s *Session) CancelConnection() {
	s.connection = nil
}
