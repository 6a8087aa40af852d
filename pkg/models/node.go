// Package models defines the workflow graph, deployed workflows and per-lead instances.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeType identifies the kind of step a node performs.
type NodeType string

const (
	NodeTypeTrigger    NodeType = "trigger"
	NodeTypeEnrichment NodeType = "enrichment"
	NodeTypeOutreach   NodeType = "outreach"
	NodeTypeWait       NodeType = "wait"
	NodeTypeDecision   NodeType = "decision"
	NodeTypeGoal       NodeType = "goal"
)

// DefaultWaitDays is used when a wait node has no positive day count.
const DefaultWaitDays = 3

// NodeTypes lists every legal node type in palette order.
var NodeTypes = []NodeType{
	NodeTypeTrigger,
	NodeTypeEnrichment,
	NodeTypeOutreach,
	NodeTypeWait,
	NodeTypeDecision,
	NodeTypeGoal,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Position is a designer-only layout coordinate in graph space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed step of a workflow graph. Data always holds the payload
// matching Type, or UnknownData when Type is not recognised.
type Node struct {
	ID       string   `json:"id"       validate:"required"`
	Type     NodeType `json:"type"     validate:"required"`
	Position Position `json:"position"`
	Label    string   `json:"label"`
	Data     NodeData `json:"data"`
}

// NodeData is the per-type configuration payload of a node.
type NodeData interface {
	NodeType() NodeType
}

type TriggerData struct {
	Event string `json:"event,omitempty"`
}

func (TriggerData) NodeType() NodeType { return NodeTypeTrigger }

type EnrichmentData struct{}

func (EnrichmentData) NodeType() NodeType { return NodeTypeEnrichment }

// OutreachData holds the subject and body guidance for the generated email.
// Both may contain template placeholders such as {{ .lead.first_name }}.
type OutreachData struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

func (OutreachData) NodeType() NodeType { return NodeTypeOutreach }

type WaitData struct {
	Days int `json:"days,omitempty"`
}

func (WaitData) NodeType() NodeType { return NodeTypeWait }

// Duration returns the wait length, falling back to DefaultWaitDays.
func (d WaitData) Duration() time.Duration {
	days := d.Days
	if days <= 0 {
		days = DefaultWaitDays
	}

	return time.Duration(days) * 24 * time.Hour
}

type DecisionData struct{}

func (DecisionData) NodeType() NodeType { return NodeTypeDecision }

// GoalData marks the terminal success state. BookMeeting asks the engine to
// create a calendar event with the lead once the goal is reached.
type GoalData struct {
	Terminal       bool `json:"terminal"`
	BookMeeting    bool `json:"book_meeting,omitempty"`
	MeetingMinutes int  `json:"meeting_minutes,omitempty"`
}

func (GoalData) NodeType() NodeType { return NodeTypeGoal }

// UnknownData carries the raw payload of a node whose type is not recognised.
type UnknownData struct {
	Type NodeType
	Raw  json.RawMessage
}

func (d UnknownData) NodeType() NodeType { return d.Type }

func (d UnknownData) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("{}"), nil
	}

	return d.Raw, nil
}

// NewNodeData returns the empty default payload for a node type.
func NewNodeData(t NodeType) NodeData {
	switch t {
	case NodeTypeTrigger:
		return TriggerData{Event: TriggerLeadApproved}
	case NodeTypeEnrichment:
		return EnrichmentData{}
	case NodeTypeOutreach:
		return OutreachData{}
	case NodeTypeWait:
		return WaitData{Days: DefaultWaitDays}
	case NodeTypeDecision:
		return DecisionData{}
	case NodeTypeGoal:
		return GoalData{Terminal: true}
	default:
		return UnknownData{Type: t}
	}
}

// NewNode creates a node of the given type with its default payload.
func NewNode(id string, t NodeType, label string, pos Position) *Node {
	if label == "" {
		label = defaultLabel(t)
	}

	return &Node{
		ID:       id,
		Type:     t,
		Position: pos,
		Label:    label,
		Data:     NewNodeData(t),
	}
}

// IsTerminal reports whether the node ends a workflow.
func (n *Node) IsTerminal() bool {
	return n.Type == NodeTypeGoal
}

func (n *Node) UnmarshalJSON(b []byte) error {
	type rawNode struct {
		ID       string          `json:"id"`
		Type     NodeType        `json:"type"`
		Position Position        `json:"position"`
		Label    string          `json:"label"`
		Data     json.RawMessage `json:"data"`
	}

	var raw rawNode

	err := json.Unmarshal(b, &raw)
	if err != nil {
		return err
	}

	data, err := DecodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("failed to decode data of node %s: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position
	n.Label = raw.Label
	n.Data = data

	return nil
}

// DecodeNodeData decodes a raw payload into the typed data for t.
// Empty or null payloads yield the type's defaults.
func DecodeNodeData(t NodeType, raw json.RawMessage) (NodeData, error) {
	empty := len(raw) == 0 || string(raw) == "null"

	switch t {
	case NodeTypeTrigger:
		return decodeInto(raw, empty, TriggerData{Event: TriggerLeadApproved})
	case NodeTypeEnrichment:
		return decodeInto(raw, empty, EnrichmentData{})
	case NodeTypeOutreach:
		return decodeInto(raw, empty, OutreachData{})
	case NodeTypeWait:
		return decodeInto(raw, empty, WaitData{Days: DefaultWaitDays})
	case NodeTypeDecision:
		return decodeInto(raw, empty, DecisionData{})
	case NodeTypeGoal:
		data, err := decodeInto(raw, empty, GoalData{Terminal: true})
		if err != nil {
			return nil, err
		}

		goal := data.(GoalData)
		goal.Terminal = true

		return goal, nil
	default:
		return UnknownData{Type: t, Raw: raw}, nil
	}
}

func decodeInto[T NodeData](raw json.RawMessage, empty bool, defaults T) (NodeData, error) {
	if empty {
		return defaults, nil
	}

	data := defaults

	err := json.Unmarshal(raw, &data)
	if err != nil {
		return nil, err
	}

	return data, nil
}

func defaultLabel(t NodeType) string {
	switch t {
	case NodeTypeTrigger:
		return "Lead approved"
	case NodeTypeEnrichment:
		return "Enrich lead"
	case NodeTypeOutreach:
		return "Send email"
	case NodeTypeWait:
		return "Wait"
	case NodeTypeDecision:
		return "Replied?"
	case NodeTypeGoal:
		return "Goal"
	default:
		return string(t)
	}
}
