package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Shape is the JSON document shape a completion must return.
type Shape struct {
	Name   string
	Schema map[string]any
}

// Validate checks raw against the shape's JSON schema.
func (s Shape) Validate(raw json.RawMessage) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.Schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, s.Name, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s: %s", ErrMalformedResponse, s.Name, strings.Join(problems, "; "))
	}

	return nil
}

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// EnrichmentShape is the structure extracted from a lead's website.
var EnrichmentShape = Shape{
	Name: "enrichment",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dm_name":     map[string]any{"type": "string"},
			"role":        map[string]any{"type": "string"},
			"email":       map[string]any{"type": "string"},
			"usps":        stringList(),
			"pain_points": stringList(),
			"brand_voice": map[string]any{"type": "string"},
		},
		"required": []any{"dm_name", "role", "email", "usps", "pain_points", "brand_voice"},
	},
}

// OutreachShape is a generated cold email.
var OutreachShape = Shape{
	Name: "outreach",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{"type": "string", "minLength": 1},
			"body":    map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"subject", "body"},
	},
}

// BackendCompleter calls the companion backend's AI completion endpoint.
type BackendCompleter struct {
	backend backend
}

// NewBackendCompleter creates a completer for the backend at baseURL.
func NewBackendCompleter(baseURL string, logger *slog.Logger) *BackendCompleter {
	return &BackendCompleter{backend: newBackend(baseURL, logger)}
}

type completeRequest struct {
	SystemPrompt  string         `json:"system_prompt"`
	UserContent   string         `json:"user_content"`
	ResponseShape map[string]any `json:"response_shape"`
}

type completeResponse struct {
	Content json.RawMessage `json:"content"`
}

// Complete asks for a JSON document matching shape and validates the answer.
func (c *BackendCompleter) Complete(
	ctx context.Context,
	systemPrompt, userContent string,
	shape Shape,
) (json.RawMessage, error) {
	var resp completeResponse

	err := c.backend.do(ctx, http.MethodPost, "/api/ai/complete", "", completeRequest{
		SystemPrompt:  systemPrompt,
		UserContent:   userContent,
		ResponseShape: shape.Schema,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ai completion failed: %w", err)
	}

	content := resp.Content

	// Some models return the document as a JSON string.
	var inner string
	if json.Unmarshal(content, &inner) == nil {
		content = json.RawMessage(inner)
	}

	if len(content) == 0 || !json.Valid(content) {
		return nil, fmt.Errorf("%w: %s: content is not JSON", ErrMalformedResponse, shape.Name)
	}

	err = shape.Validate(content)
	if err != nil {
		return nil, err
	}

	return content, nil
}
