package designer

import (
	"fmt"
	"math"

	"github.com/quasarerp/automations/pkg/models"
)

// Node box dimensions in graph units.
const (
	NodeWidth    = 220.0
	HeaderHeight = 40.0
	NodeHeight   = 80.0

	// CurveOffset is the horizontal distance of the bezier control points
	// from the edge's endpoints.
	CurveOffset = 100.0

	// Vertical port offsets from the top of a node. Decision outputs sit at
	// 30% and 70% of the body, everything else at the middle.
	yesPortY = NodeHeight * 0.3
	noPortY  = NodeHeight * 0.7
	midPortY = NodeHeight * 0.5
)

// Point is a coordinate in graph or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OutputPoint returns where an edge leaving node on handle starts.
func OutputPoint(node *models.Node, handle string) Point {
	offset := midPortY

	if node.Type == models.NodeTypeDecision {
		switch models.NormalizeHandle(handle) {
		case models.HandleYes:
			offset = yesPortY
		case models.HandleNo:
			offset = noPortY
		}
	}

	return Point{
		X: node.Position.X + NodeWidth,
		Y: node.Position.Y + offset,
	}
}

// InputPoint returns where an edge entering node ends.
func InputPoint(node *models.Node) Point {
	return Point{
		X: node.Position.X,
		Y: node.Position.Y + midPortY,
	}
}

// CurvePath returns an SVG path for a cubic bezier from one point to another
// with horizontal control points, giving the S-shaped curve used for edges.
func CurvePath(from, to Point) string {
	return fmt.Sprintf("M %g %g C %g %g, %g %g, %g %g",
		from.X, from.Y,
		from.X+CurveOffset, from.Y,
		to.X-CurveOffset, to.Y,
		to.X, to.Y)
}

// EdgePath returns the rendered path of edge in g, or false when either
// endpoint is missing.
func EdgePath(g *models.Graph, edge *models.Edge) (string, bool) {
	source, ok := g.NodeByID(edge.Source)
	if !ok {
		return "", false
	}

	target, ok := g.NodeByID(edge.Target)
	if !ok {
		return "", false
	}

	return CurvePath(OutputPoint(source, edge.Handle()), InputPoint(target)), true
}

// View is the pan and zoom applied to the canvas. Node positions are stored in
// graph space; the view maps them to the screen.
type View struct {
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
	Zoom float64 `json:"zoom"`
}

// Zoom limits.
const (
	MinZoom = 0.2
	MaxZoom = 3.0
)

// DefaultView is the identity transform.
func DefaultView() View {
	return View{Zoom: 1}
}

// clampZoom bounds zoom to [MinZoom, MaxZoom]. A NaN or infinite zoom keeps
// current.
func clampZoom(current, zoom float64) float64 {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return current
	}

	return min(max(zoom, MinZoom), MaxZoom)
}

// ScreenToGraph maps a screen point into graph space.
func (v View) ScreenToGraph(p Point) Point {
	return Point{
		X: (p.X - v.PanX) / v.Zoom,
		Y: (p.Y - v.PanY) / v.Zoom,
	}
}

// GraphToScreen maps a graph point onto the screen.
func (v View) GraphToScreen(p Point) Point {
	return Point{
		X: p.X*v.Zoom + v.PanX,
		Y: p.Y*v.Zoom + v.PanY,
	}
}
