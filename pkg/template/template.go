// Package template renders operator-written outreach guidance against lead data.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/quasarerp/automations/pkg/models"
)

// LeadData builds the template context for a lead. Enriched fields are empty
// strings when enrichment has not run.
func LeadData(lead *models.Lead) map[string]any {
	data := map[string]any{
		"name":        lead.Name,
		"first_name":  firstWord(lead.Name),
		"company":     lead.Company,
		"website":     lead.Website,
		"email":       lead.ContactEmail(),
		"dm_name":     "",
		"role":        "",
		"usps":        []string{},
		"pain_points": []string{},
		"brand_voice": "",
	}

	if enriched := lead.EnrichedData; enriched != nil {
		data["dm_name"] = enriched.DMName
		data["role"] = enriched.Role
		data["usps"] = enriched.USPs
		data["pain_points"] = enriched.PainPoints
		data["brand_voice"] = enriched.BrandVoice

		if enriched.DMName != "" {
			data["first_name"] = firstWord(enriched.DMName)
		}
	}

	return data
}

// RenderForLead renders templateStr with the lead's context under `.lead`.
func RenderForLead(templateStr string, lead *models.Lead) (string, error) {
	return Render(templateStr, map[string]any{"lead": LeadData(lead)})
}

// Render executes a text/template. Missing keys render as empty strings.
func Render(templateStr string, data any) (string, error) {
	if !strings.Contains(templateStr, "{{") {
		return templateStr, nil
	}

	tmpl, err := template.
		New("outreach").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"join": strings.Join,
			"default": func(fallback string, value any) string {
				s, ok := value.(string)
				if !ok || strings.TrimSpace(s) == "" {
					return fallback
				}

				return s
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}
