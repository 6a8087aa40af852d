package nodes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Descriptor documents a node type for the designer palette and for
// deploy-time configuration checks.
type Descriptor struct {
	Type        models.NodeType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Outputs     []string        `json:"outputs"`
	Schema      map[string]any  `json:"schema"`
}

// Catalog lists every node type in palette order.
func Catalog() []Descriptor {
	descriptors := make([]Descriptor, 0, len(models.NodeTypes))

	for _, t := range models.NodeTypes {
		d, _ := Describe(t)
		descriptors = append(descriptors, d)
	}

	return descriptors
}

// Describe returns the descriptor of a node type.
func Describe(t models.NodeType) (Descriptor, bool) {
	d := Descriptor{Type: t, Outputs: models.OutputHandles(t)}

	switch t {
	case models.NodeTypeTrigger:
		d.Name = "Trigger"
		d.Description = "Starts the workflow when a lead is approved"
		d.Schema = objectSchema(map[string]any{
			"event": map[string]any{"type": "string", "enum": []any{models.TriggerLeadApproved}},
		})
	case models.NodeTypeEnrichment:
		d.Name = "Enrichment"
		d.Description = "Researches the lead's website and stores the decision maker, USPs and pain points"
		d.Schema = objectSchema(map[string]any{})
	case models.NodeTypeOutreach:
		d.Name = "Outreach"
		d.Description = "Writes and sends a personalised cold email; pauses until a mail account is connected"
		d.Schema = objectSchema(map[string]any{
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject guidance. Supports placeholders such as {{ .lead.first_name }}",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Body guidance. Supports placeholders such as {{ .lead.company }}",
			},
		})
	case models.NodeTypeWait:
		d.Name = "Wait"
		d.Description = "Pauses the lead for a number of days"
		d.Schema = objectSchema(map[string]any{
			"days": map[string]any{"type": "integer", "minimum": 1, "maximum": 365, "default": models.DefaultWaitDays},
		})
	case models.NodeTypeDecision:
		d.Name = "Decision"
		d.Description = "Branches on whether the lead replied to the last email"
		d.Schema = objectSchema(map[string]any{})
	case models.NodeTypeGoal:
		d.Name = "Goal"
		d.Description = "Marks the lead as converted, optionally booking a meeting"
		d.Schema = objectSchema(map[string]any{
			"terminal":        map[string]any{"type": "boolean"},
			"book_meeting":    map[string]any{"type": "boolean"},
			"meeting_minutes": map[string]any{"type": "integer", "minimum": 0, "maximum": 480},
		})
	default:
		return Descriptor{}, false
	}

	return d, true
}

func objectSchema(properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

// ValidateData checks a node's configuration against its type's schema.
func ValidateData(node *models.Node) error {
	d, ok := Describe(node.Type)
	if !ok {
		return fmt.Errorf("node %s: unknown node type %q", node.ID, node.Type)
	}

	raw, err := json.Marshal(node.Data)
	if err != nil {
		return fmt.Errorf("node %s: failed to marshal data: %w", node.ID, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(d.Schema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("node %s: failed to validate data: %w", node.ID, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("node %s: invalid %s configuration: %s", node.ID, node.Type, strings.Join(problems, "; "))
	}

	return nil
}
