package designer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quasarerp/automations/pkg/models"
)

// FieldKind tells the form renderer which input to draw.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldTextArea FieldKind = "textarea"
	FieldNumber   FieldKind = "number"
)

// Field is one editable configuration value of a node.
type Field struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Kind  FieldKind `json:"kind"`
	Value string    `json:"value"`
}

// ConfigForm selects node and returns its editable fields. Only outreach and
// wait nodes have any.
func (s *Session) ConfigForm(id string) ([]Field, error) {
	node, ok := s.graph.NodeByID(id)
	if !ok {
		return nil, ErrNodeNotFound
	}

	s.selected = id

	switch data := node.Data.(type) {
	case models.OutreachData:
		return []Field{
			{Name: "subject", Label: "Subject", Kind: FieldText, Value: data.Subject},
			{Name: "body", Label: "Body", Kind: FieldTextArea, Value: data.Body},
		}, nil
	case models.WaitData:
		days := data.Days
		if days <= 0 {
			days = models.DefaultWaitDays
		}

		return []Field{
			{Name: "days", Label: "Days", Kind: FieldNumber, Value: strconv.Itoa(days)},
		}, nil
	case models.TriggerData, models.EnrichmentData, models.DecisionData, models.GoalData:
		return []Field{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type)
	}
}

// UpdateConfig applies form values to a node. Fields not present in values
// keep their current value.
func (s *Session) UpdateConfig(id string, values map[string]string) error {
	if s.closed {
		return ErrSessionClosed
	}

	node, ok := s.graph.NodeByID(id)
	if !ok {
		return ErrNodeNotFound
	}

	switch data := node.Data.(type) {
	case models.OutreachData:
		for name, value := range values {
			switch name {
			case "subject":
				data.Subject = value
			case "body":
				data.Body = value
			default:
				return fmt.Errorf("%w: %s on outreach", ErrUnknownConfigField, name)
			}
		}

		node.Data = data
	case models.WaitData:
		for name, value := range values {
			if name != "days" {
				return fmt.Errorf("%w: %s on wait", ErrUnknownConfigField, name)
			}

			days, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || days < 1 {
				return fmt.Errorf("%w: days must be a positive whole number, got %q", ErrInvalidConfigValue, value)
			}

			data.Days = days
		}

		node.Data = data
	default:
		if len(values) > 0 {
			return fmt.Errorf("%w: %s nodes have no configuration", ErrUnknownConfigField, node.Type)
		}
	}

	return nil
}

// Rename sets the label shown in a node's header.
func (s *Session) Rename(id, label string) error {
	if s.closed {
		return ErrSessionClosed
	}

	node, ok := s.graph.NodeByID(id)
	if !ok {
		return ErrNodeNotFound
	}

	if label = strings.TrimSpace(label); label != "" {
		node.Label = label
	}

	return nil
}
