// Package designer implements the canvas workflow designer as an explicit
// session value: a graph being edited plus the view it is edited through.
package designer

import (
	"slices"

	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/models"
)

// Session is one open designer. It is not safe for concurrent use.
type Session struct {
	graph    *models.Graph
	view     View
	viewport Point

	connection *Connection
	selected   string
	closed     bool

	newID func() string
}

// Option configures a Session.
type Option func(*Session)

// WithViewport sets the size of the visible canvas in screen units.
func WithViewport(width, height float64) Option {
	return func(s *Session) {
		s.viewport = Point{X: width, Y: height}
	}
}

// WithIDGenerator replaces the uuid generator used for new nodes and edges.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// NewSession opens a designer on a copy of graph; a nil graph starts empty.
func NewSession(graph *models.Graph, opts ...Option) *Session {
	g := graph.Clone()
	if g == nil {
		g = &models.Graph{}
	}

	s := &Session{
		graph:    g,
		view:     DefaultView(),
		viewport: Point{X: 1200, Y: 800},
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Graph returns a copy of the graph being edited.
func (s *Session) Graph() *models.Graph {
	return s.graph.Clone()
}

// View returns the current pan and zoom.
func (s *Session) View() View {
	return s.view
}

// Closed reports whether the session was deployed.
func (s *Session) Closed() bool {
	return s.closed
}

// Selected returns the id of the node whose configuration form is open.
func (s *Session) Selected() string {
	return s.selected
}

// Pan translates the view by a screen-space delta. Node positions are
// untouched.
func (s *Session) Pan(dx, dy float64) {
	s.view.PanX += dx
	s.view.PanY += dy
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (s *Session) SetZoom(zoom float64) {
	s.view.Zoom = clampZoom(s.view.Zoom, zoom)
}

// ZoomBy multiplies the zoom factor, keeping the graph point under the screen
// point anchor fixed.
func (s *Session) ZoomBy(factor float64, anchor Point) {
	zoom := clampZoom(s.view.Zoom, s.view.Zoom*factor)
	if zoom == s.view.Zoom {
		return
	}

	before := s.view.ScreenToGraph(anchor)
	s.view.Zoom = zoom
	s.view.PanX = anchor.X - before.X*s.view.Zoom
	s.view.PanY = anchor.Y - before.Y*s.view.Zoom
}

// ScreenToGraph maps a screen point into graph space through the current view.
func (s *Session) ScreenToGraph(p Point) Point {
	return s.view.ScreenToGraph(p)
}

// GraphToScreen maps a graph point onto the screen through the current view.
func (s *Session) GraphToScreen(p Point) Point {
	return s.view.GraphToScreen(p)
}

// AddNode appends a node of type t centred in the visible viewport with its
// default configuration.
func (s *Session) AddNode(t models.NodeType) (*models.Node, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	if !t.Valid() {
		return nil, ErrUnknownNodeType
	}

	center := s.view.ScreenToGraph(Point{X: s.viewport.X / 2, Y: s.viewport.Y / 2})
	node := models.NewNode(s.newID(), t, "", models.Position{
		X: center.X - NodeWidth/2,
		Y: center.Y - NodeHeight/2,
	})

	s.graph.Nodes = append(s.graph.Nodes, node)

	return node, nil
}

// MoveNode drags a node by a screen-space delta. The delta is divided by the
// zoom so the node follows the pointer.
func (s *Session) MoveNode(id string, dx, dy float64) error {
	if s.closed {
		return ErrSessionClosed
	}

	node, ok := s.graph.NodeByID(id)
	if !ok {
		return ErrNodeNotFound
	}

	node.Position.X += dx / s.view.Zoom
	node.Position.Y += dy / s.view.Zoom

	return nil
}

// DeleteNode removes a node and every edge touching it.
func (s *Session) DeleteNode(id string) error {
	if s.closed {
		return ErrSessionClosed
	}

	if _, ok := s.graph.NodeByID(id); !ok {
		return ErrNodeNotFound
	}

	s.graph.Nodes = slices.DeleteFunc(s.graph.Nodes, func(n *models.Node) bool {
		return n.ID == id
	})
	s.graph.Edges = slices.DeleteFunc(s.graph.Edges, func(e *models.Edge) bool {
		return e.Source == id || e.Target == id
	})

	if s.selected == id {
		s.selected = ""
	}

	if s.connection != nil && s.connection.Source == id {
		s.connection = nil
	}

	return nil
}

// DeleteEdge removes a single edge.
func (s *Session) DeleteEdge(id string) error {
	if s.closed {
		return ErrSessionClosed
	}

	if _, ok := s.graph.EdgeByID(id); !ok {
		return ErrEdgeNotFound
	}

	s.graph.Edges = slices.DeleteFunc(s.graph.Edges, func(e *models.Edge) bool {
		return e.ID == id
	})

	return nil
}

// EdgeShape is an edge ready to draw.
type EdgeShape struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// EdgeShapes returns the bezier path of every edge whose endpoints exist.
func (s *Session) EdgeShapes() []EdgeShape {
	shapes := make([]EdgeShape, 0, len(s.graph.Edges))

	for _, edge := range s.graph.Edges {
		path, ok := EdgePath(s.graph, edge)
		if !ok {
			continue
		}

		shapes = append(shapes, EdgeShape{ID: edge.ID, Path: path})
	}

	return shapes
}
